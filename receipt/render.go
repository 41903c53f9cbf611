package receipt

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ScaleFactor is the device pixel ratio receipts are captured at.
const ScaleFactor = 2

const viewportHeight = 1200

// Renderer turns a receipt document into an image. width is the
// captured width in CSS pixels; the image is ScaleFactor times wider.
type Renderer interface {
	Render(ctx context.Context, html string, width int) (image.Image, error)
}

// BrowserRenderer renders receipts in a headless Chromium driven over
// the DevTools protocol. The browser is started on first use and
// reused for every receipt.
type BrowserRenderer struct {
	controlURL string
	logger     *zap.SugaredLogger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserRenderer returns a renderer connecting to the browser at
// controlURL, or launching a local headless one when it is empty.
func NewBrowserRenderer(controlURL string, logger *zap.SugaredLogger) *BrowserRenderer {
	return &BrowserRenderer{controlURL: controlURL, logger: logger}
}

func (r *BrowserRenderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}
	controlURL := r.controlURL
	if controlURL == "" {
		u, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch headless browser, error %v", err)
		}
		controlURL = u
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser [%s], error %v", controlURL, err)
	}
	r.logger.Infow("receipt browser connected", "controlURL", controlURL)
	r.browser = browser
	return browser, nil
}

// Render loads html in a fresh page sized to width and captures the
// receipt element.
func (r *BrowserRenderer) Render(ctx context.Context, html string, width int) (image.Image, error) {
	browser, err := r.connect()
	if err != nil {
		return nil, err
	}
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open receipt page, error %v", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	err = proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            viewportHeight,
		DeviceScaleFactor: ScaleFactor,
		Mobile:            false,
	}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("failed to set receipt viewport, error %v", err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("failed to load receipt html, error %v", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait for receipt page, error %v", err)
	}
	// the web font has to be in place before capturing Devanagari text
	if _, err := page.Eval(`() => document.fonts.ready.then(() => true)`); err != nil {
		r.logger.Warnw("receipt fonts not ready, capturing anyway", "error", err)
	}
	el, err := page.Element("#" + RootID)
	if err != nil {
		return nil, fmt.Errorf("failed to find receipt element, error %v", err)
	}
	b, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to capture receipt, error %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to decode receipt capture, error %v", err)
	}
	return img, nil
}

// Close shuts the browser down.
func (r *BrowserRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

// EncodePNG encodes img for sharing.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode receipt png, error %v", err)
	}
	return buf.Bytes(), nil
}
