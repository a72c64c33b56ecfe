package imageproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

var (
	// ErrRead is returned when the input cannot be read.
	ErrRead = errors.New("read failed")
	// ErrDecode is returned when the input is not a decodable raster image.
	ErrDecode = errors.New("decode failed")
	// ErrEncode is returned when the JPEG encoder rejects the rendered buffer.
	ErrEncode = errors.New("encode failed")
	// ErrInvalidBudget is returned for a non-positive size budget.
	ErrInvalidBudget = errors.New("size budget must be positive")
	// ErrOverBudget is returned by CheckBudget for results above the hard limit.
	ErrOverBudget = errors.New("image exceeds size limit")
)

const (
	// DefaultMaxDimension bounds the larger side of the output.
	DefaultMaxDimension = 800

	// Quality is searched in tenths from startQuality down to minQuality.
	startQuality = 8
	minQuality   = 1

	// MaxAttempts is the upper bound on encode attempts per call.
	MaxAttempts = startQuality - minQuality + 1
)

// Observer receives the outcome of each compression.
type Observer interface {
	RecordCompression(duration time.Duration, attempts int, sizeKB float64, fit bool, err error)
}

// Result is a compressed image ready to embed as a JSON string field.
type Result struct {
	DataURI      string  `json:"dataUri"`
	SizeKB       float64 `json:"sizeKB"`
	Bytes        int     `json:"bytes"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Quality      float64 `json:"quality"`
	Attempts     int     `json:"attempts"`
	SourceFormat string  `json:"sourceFormat,omitempty"`
}

// Fits reports whether the estimated size is within limitKB.
func (r *Result) Fits(limitKB float64) bool {
	return r.SizeKB <= limitKB
}

// CheckBudget returns ErrOverBudget when res is larger than limitKB.
func CheckBudget(res *Result, limitKB float64) error {
	if res.Fits(limitKB) {
		return nil
	}
	return fmt.Errorf("%w: %.1fKB > %.1fKB", ErrOverBudget, res.SizeKB, limitKB)
}

// Compressor downsizes images until their JPEG data URI fits a size budget.
type Compressor struct {
	Codec        Codec
	MaxDimension int
	Observer     Observer
	Logger       *slog.Logger
}

// NewCompressor returns a Compressor using codec and the default max dimension.
func NewCompressor(codec Codec) *Compressor {
	if codec == nil {
		codec = StdCodec{}
	}
	return &Compressor{Codec: codec, MaxDimension: DefaultMaxDimension}
}

// Compress decodes the image read from src, bounds its larger side to
// MaxDimension and lowers JPEG quality from 0.8 in steps of 0.1 until the
// estimated size is at most maxSizeKB or quality reaches 0.1.
//
// A result produced at quality 0.1 may still be larger than maxSizeKB;
// callers enforce their hard limit with CheckBudget.
func (c *Compressor) Compress(ctx context.Context, src io.Reader, maxSizeKB float64) (*Result, error) {
	start := time.Now()
	res, err := c.compress(ctx, src, maxSizeKB)
	if c.Observer != nil {
		var attempts int
		var size float64
		fit := false
		if res != nil {
			attempts, size, fit = res.Attempts, res.SizeKB, res.Fits(maxSizeKB)
		}
		c.Observer.RecordCompression(time.Since(start), attempts, size, fit, err)
	}
	return res, err
}

func (c *Compressor) compress(ctx context.Context, src io.Reader, maxSizeKB float64) (*Result, error) {
	if maxSizeKB <= 0 {
		return nil, ErrInvalidBudget
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if IsSVG(data) {
		return nil, fmt.Errorf("%w: svg is not a raster image", ErrDecode)
	}

	img, err := c.Codec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	maxDim := c.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	w, h := targetSize(img.Bounds().Dx(), img.Bounds().Dy(), maxDim)
	canvas := render(img, w, h)

	res := &Result{Width: w, Height: h, SourceFormat: DetectFormat(data)}
	for q := startQuality; q >= minQuality; q-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := c.Codec.EncodeJPEG(canvas, q*10)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncode, err)
		}
		res.DataURI = EncodeDataURI("image/jpeg", out)
		res.SizeKB = EstimateKB(res.DataURI)
		res.Bytes = len(out)
		res.Quality = float64(q) / 10
		res.Attempts++

		c.logger().Debug("compression attempt",
			"quality", res.Quality, "size_kb", res.SizeKB, "budget_kb", maxSizeKB)

		if res.SizeKB <= maxSizeKB {
			break
		}
	}
	return res, nil
}

func (c *Compressor) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
