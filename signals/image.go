package signals

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"go.uber.org/zap"

	"honestlens/config"
	"honestlens/types"
)

// ImageForensics scores an image from its metadata, any printed text, and pixel statistics.
type ImageForensics struct {
	ocr    OCR
	logger *zap.Logger
}

// NewImageForensics returns the image collector. A nil OCR skips text extraction.
func NewImageForensics(ocr OCR, logger *zap.Logger) *ImageForensics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageForensics{ocr: ocr, logger: logger}
}

func (f *ImageForensics) Kind() types.SignalKind { return types.SignalImageForensics }

func (f *ImageForensics) Collect(ctx context.Context, in Input) (types.Signal, error) {
	if len(in.Image) == 0 {
		return types.Signal{}, errors.New("no image data")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(in.Image))
	if err != nil {
		return types.Signal{}, fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > config.MaxImagePixels {
		return types.Signal{}, fmt.Errorf("%w: image declares %dx%d pixels, limit is %d",
			types.ErrInvalidInput, cfg.Width, cfg.Height, config.MaxImagePixels)
	}
	img, _, err := image.Decode(bytes.NewReader(in.Image))
	if err != nil {
		return types.Signal{}, fmt.Errorf("decode image: %w", err)
	}

	meta := InspectMetadata(in.Image, cfg, format)
	if err := ctx.Err(); err != nil {
		return types.Signal{}, err
	}
	manip := AnalyzePixels(img, format)

	sig := types.Signal{Kind: types.SignalImageForensics}
	sig.Evidence = append(sig.Evidence, fmt.Sprintf("%s image %dx%d", format, cfg.Width, cfg.Height))
	if meta.HasEXIF {
		sig.Evidence = append(sig.Evidence, "EXIF metadata present")
	}
	sig.Flags = append(sig.Flags, meta.Findings...)
	sig.Flags = append(sig.Flags, manip.Flags()...)

	score := baseScore + meta.Delta() + manip.Delta()

	if text := f.extractText(ctx, in.Image); text != "" {
		analysis := AnalyzeText(text)
		score += analysis.Score - baseScore
		sig.Evidence = append(sig.Evidence, fmt.Sprintf("OCR extracted %d words", len(strings.Fields(text))))
		sig.Nested = append(sig.Nested, analysis.Signal())
	}

	sig.Score = types.ClampScore(score)
	return sig, nil
}

// extractText returns "" when OCR is unavailable or fails; the image is still scored.
func (f *ImageForensics) extractText(ctx context.Context, data []byte) string {
	if f.ocr == nil {
		return ""
	}
	text, err := f.ocr.ExtractText(ctx, data)
	if err != nil {
		f.logger.Warn("ocr failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}
