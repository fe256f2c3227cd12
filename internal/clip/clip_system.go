package clip

import (
	"context"
	"fmt"

	"golang.design/x/clipboard"

	"go.klb.dev/superclip/internal/transfer"
)

// systemBackend reads through golang.design/x/clipboard, which only exposes
// text and PNG, so Types reports at most those two.
type systemBackend struct{}

func openSystem() (*systemBackend, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("system clipboard: %w", err)
	}
	return &systemBackend{}, nil
}

func (b *systemBackend) Name() string { return "system clipboard (golang.design/x/clipboard)" }

func (b *systemBackend) Types(context.Context) ([]string, error) {
	var types []string
	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		types = append(types, "image/png")
	}
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		types = append(types, transfer.TextType)
	}
	return types, nil
}

func (b *systemBackend) ReadText(context.Context) (string, error) {
	text := clipboard.Read(clipboard.FmtText)
	if text == nil {
		return "", &transfer.NoSuitableContentError{}
	}
	return transfer.Decode(text)
}

func (b *systemBackend) Close() error { return nil }
