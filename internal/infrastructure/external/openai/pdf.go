package openai

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DefaultMaxPages bounds how many PDF pages are sent to the model
const DefaultMaxPages = 3

// PageRasterizer turns a PDF into JPEG page images
type PageRasterizer interface {
	Rasterize(content []byte, maxPages int) ([][]byte, error)
}

// FitzRasterizer renders PDF pages with MuPDF
type FitzRasterizer struct {
	logger *zap.Logger
}

// NewFitzRasterizer creates a MuPDF-backed rasterizer
func NewFitzRasterizer(logger *zap.Logger) *FitzRasterizer {
	return &FitzRasterizer{logger: logger}
}

// Rasterize renders up to maxPages pages. Pages that fail to render are skipped.
func (r *FitzRasterizer) Rasterize(content []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if maxPages > 0 && pageCount > maxPages {
		pageCount = maxPages
	}

	r.logger.Debug("Rasterizing PDF", zap.Int("pages", pageCount))

	var images [][]byte
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			r.logger.Warn("Failed to extract page as image",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		imgBytes, err := encodeJPEG(img)
		if err != nil {
			r.logger.Warn("Failed to encode page to JPEG",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		images = append(images, imgBytes)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no renderable pages in PDF")
	}
	return images, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
