package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"spellforge/imagegen"
)

// tracker is implemented by recorders that count running calls.
type tracker interface {
	track(provider string) func()
}

// instrumented wraps a provider and reports every call to its recorders.
type instrumented struct {
	next      imagegen.ImageProvider
	recorders []Recorder
	now       func() time.Time
}

// Instrument returns p wrapped so that each call is reported to every
// non-nil recorder.
//
// Example:
//
//	collector := metrics.NewCollector("spellforge", prometheus.DefaultRegisterer, logger)
//	provider = metrics.Instrument(provider, collector)
func Instrument(p imagegen.ImageProvider, recorders ...Recorder) imagegen.ImageProvider {
	var rs []Recorder
	for _, r := range recorders {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return &instrumented{next: p, recorders: rs, now: time.Now}
}

func (m *instrumented) ID() imagegen.ProviderID {
	return m.next.ID()
}

func (m *instrumented) Txt2Img(ctx context.Context, req imagegen.Txt2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	done := m.begin(OpTxt2Img)
	res, err := m.next.Txt2Img(ctx, req, opts)
	done(res, err)
	return res, err
}

func (m *instrumented) Img2Img(ctx context.Context, req imagegen.Img2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	done := m.begin(OpImg2Img)
	res, err := m.next.Img2Img(ctx, req, opts)
	done(res, err)
	return res, err
}

func (m *instrumented) Upscale(ctx context.Context, req imagegen.UpscaleRequest, opts imagegen.Options) (*imagegen.Result, error) {
	done := m.begin(OpUpscale)
	res, err := m.next.Upscale(ctx, req, opts)
	done(res, err)
	return res, err
}

func (m *instrumented) Infos(ctx context.Context) (imagegen.Infos, error) {
	done := m.begin(OpInfos)
	infos, err := m.next.Infos(ctx)
	done(nil, err)
	return infos, err
}

// Unwrap returns the wrapped provider.
func (m *instrumented) Unwrap() imagegen.ImageProvider {
	return m.next
}

func (m *instrumented) begin(op string) func(*imagegen.Result, error) {
	provider := string(m.next.ID())
	var untrack []func()
	for _, r := range m.recorders {
		if t, ok := r.(tracker); ok {
			untrack = append(untrack, t.track(provider))
		}
	}
	start := m.now()

	return func(res *imagegen.Result, err error) {
		for _, f := range untrack {
			f()
		}
		end := m.now()
		rec := CallRecord{
			ID:        uuid.NewString(),
			Provider:  provider,
			Operation: op,
			Status:    statusOf(err),
			StartTime: start,
			EndTime:   end,
			Duration:  end.Sub(start),
		}
		if res != nil {
			rec.Images = len(res.Images)
		}
		if err != nil {
			rec.ErrorMsg = err.Error()
		}
		for _, r := range m.recorders {
			r.Record(rec)
		}
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, imagegen.ErrTimeout):
		return StatusTimeout
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	default:
		return StatusError
	}
}
