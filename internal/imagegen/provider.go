// Package imagegen provides the placeholder media provider behind the image
// and video routes. It produces deterministic placeholder URLs seeded from
// the prompt, so identical requests yield identical assets.
package imagegen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidCount is returned for a non-positive image count.
var ErrInvalidCount = errors.New("imagegen: count must be positive")

// Image is one generated picture.
type Image struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

// Video is one generated clip.
type Video struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

// styleSizes maps a style hint to placeholder dimensions.
var styleSizes = map[string][2]int{
	"":          {512, 512},
	"square":    {512, 512},
	"portrait":  {512, 768},
	"landscape": {768, 512},
	"wide":      {1024, 576},
}

// Provider builds placeholder URLs under fixed base URLs.
type Provider struct {
	imageBase string
	videoBase string
}

// NewProvider returns a Provider for the given hosts.
func NewProvider(imageBase, videoBase string) *Provider {
	return &Provider{
		imageBase: strings.TrimRight(imageBase, "/"),
		videoBase: strings.TrimRight(videoBase, "/"),
	}
}

// GenerateImages returns count placeholder images for prompt. Unknown
// styles fall back to square.
func (p *Provider) GenerateImages(ctx context.Context, prompt string, count int, style string) ([]Image, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	style = strings.ToLower(strings.TrimSpace(style))
	size, ok := styleSizes[style]
	if !ok {
		size = styleSizes[""]
	}

	out := make([]Image, 0, count)
	for i := 0; i < count; i++ {
		seed := seedFor(prompt, style, i)
		out = append(out, Image{
			URL:    fmt.Sprintf("%s/seed/%s/%d/%d", p.imageBase, url.PathEscape(seed), size[0], size[1]),
			Prompt: prompt,
		})
	}
	return out, nil
}

// GenerateVideo returns one placeholder clip for prompt.
func (p *Provider) GenerateVideo(ctx context.Context, prompt string) (Video, error) {
	if err := ctx.Err(); err != nil {
		return Video{}, err
	}
	return Video{
		URL:    fmt.Sprintf("%s/%s.mp4", p.videoBase, seedFor(prompt, "video", 0)),
		Prompt: prompt,
	}, nil
}

func seedFor(prompt, style string, i int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", prompt, style, i)))
	return hex.EncodeToString(sum[:8])
}
