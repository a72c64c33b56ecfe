package handler_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leca/cardvault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compressResult struct {
	DataURI  string  `json:"dataUri"`
	SizeKB   float64 `json:"sizeKB"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Quality  float64 `json:"quality"`
	Attempts int     `json:"attempts"`
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 120, A: 255})
		}
	}
	return img
}

func noise(w, h int) image.Image {
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// multipartFileBody builds a multipart request body with a file field.
func multipartFileBody(t *testing.T, fieldName, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if fieldName != "" {
		fw, err := w.CreateFormFile(fieldName, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func uploadImage(t *testing.T, ts *httptest.Server, token, fieldName string, content []byte) *http.Response {
	t.Helper()
	body, contentType := multipartFileBody(t, fieldName, "card.png", content)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/images/compress", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCompressImage_LargePNG(t *testing.T) {
	ts := testServer(t)
	s := registerUser(t, ts, "ash")

	resp := uploadImage(t, ts, s.Token, "file", pngBytes(t, gradient(2000, 1000)))
	env := expectStatus(t, resp, http.StatusOK)

	var res compressResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 400, res.Height)
	assert.LessOrEqual(t, res.SizeKB, 45.0)
	assert.True(t, strings.HasPrefix(res.DataURI, "data:image/jpeg;base64,"))
	assert.Empty(t, env.Messages)

	// The compressed image is accepted as a card image.
	card := createCard(t, ts, s.Token, map[string]any{"image": res.DataURI})
	assert.Equal(t, res.DataURI, card.Image)
}

func TestCompressImage_SmallImageSingleAttempt(t *testing.T) {
	ts := testServer(t)
	s := registerUser(t, ts, "ash")

	resp := uploadImage(t, ts, s.Token, "file", pngBytes(t, gradient(100, 100)))
	env := expectStatus(t, resp, http.StatusOK)

	var res compressResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 1, res.Attempts)
	assert.InDelta(t, 0.8, res.Quality, 1e-9)
}

func TestCompressImage_Corrupt(t *testing.T) {
	ts := testServer(t)
	s := registerUser(t, ts, "ash")

	resp := uploadImage(t, ts, s.Token, "file", []byte("definitely not an image"))
	env := expectStatus(t, resp, http.StatusUnprocessableEntity)
	assert.Contains(t, env.Errors[0].Message, "Failed to process image")
}

func TestCompressImage_OverLimit(t *testing.T) {
	ts := testServer(t, func(c *config.Config) {
		c.ImageTargetKB = 2
		c.ImageLimitKB = 2
	})
	s := registerUser(t, ts, "ash")

	resp := uploadImage(t, ts, s.Token, "file", pngBytes(t, noise(400, 400)))
	env := expectStatus(t, resp, http.StatusRequestEntityTooLarge)
	assert.Contains(t, env.Errors[0].Message, "Image is still too large after compression")
}

func TestCompressImage_AboveTargetWithinLimit(t *testing.T) {
	ts := testServer(t, func(c *config.Config) {
		c.ImageTargetKB = 2
		c.ImageLimitKB = 10000
	})
	s := registerUser(t, ts, "ash")

	resp := uploadImage(t, ts, s.Token, "file", pngBytes(t, noise(400, 400)))
	env := expectStatus(t, resp, http.StatusOK)

	var res compressResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.Equal(t, 8, res.Attempts)
	assert.InDelta(t, 0.1, res.Quality, 1e-9)
	require.Len(t, env.Messages, 1)
	assert.Equal(t, 1413, env.Messages[0].Code)
}

func TestCompressImage_MissingFile(t *testing.T) {
	ts := testServer(t)
	s := registerUser(t, ts, "ash")

	resp := uploadImage(t, ts, s.Token, "", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCompressImage_RequiresAuth(t *testing.T) {
	ts := testServer(t)

	resp := uploadImage(t, ts, "", "file", pngBytes(t, gradient(10, 10)))
	expectStatus(t, resp, http.StatusUnauthorized)
}
