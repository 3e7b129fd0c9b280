// internal/page/landmark.go
package page

import (
	"context"

	"github.com/xkilldash9x/pagewright/internal/driver"
)

// LandmarkPage is a generic model for pages identified by one element. After navigation
// it waits for the application to settle; it counts as loaded once the landmark is visible.
type LandmarkPage struct {
	DefaultHooks
	*Base

	Landmark string
}

// NewLandmarkPage creates a LandmarkPage on h.
func NewLandmarkPage(name string, h driver.Handle, landmark string, opts Options) *LandmarkPage {
	p := &LandmarkPage{Landmark: landmark}
	p.Base = NewBase(name, h, p, opts)
	return p
}

func (p *LandmarkPage) OnNavigated(ctx context.Context, _ string) error {
	return p.WaitForStable(ctx)
}

func (p *LandmarkPage) VerifyLoaded(ctx context.Context) (bool, error) {
	st, err := p.Handle().ElementState(ctx, p.Landmark)
	if err != nil {
		return false, err
	}
	return st.Present && st.Visible, nil
}
