// Package install downloads model files from a small set of trusted hosts
// and places them into the asset store.
package install

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwantia/assetd"
	"github.com/mwantia/assetd/data"
	"github.com/mwantia/assetd/log"
)

// DefaultAllowedDomains are the hosts models may be downloaded from.
var DefaultAllowedDomains = []string{
	"civitai.com",
	"github.com",
	"raw.githubusercontent.com",
	"huggingface.co",
}

// typeRoots maps the model type aliases accepted in install requests to the
// root the file belongs in.
var typeRoots = map[string]string{
	"checkpoints":     "checkpoints",
	"checkpoint":      "checkpoints",
	"unclip":          "checkpoints",
	"text_encoders":   "text_encoders",
	"clip":            "text_encoders",
	"vae":             "vae",
	"lora":            "loras",
	"t2i-adapter":     "controlnet",
	"t2i-style":       "controlnet",
	"controlnet":      "controlnet",
	"clip_vision":     "clip_vision",
	"gligen":          "gligen",
	"upscale":         "upscale_models",
	"embedding":       "embeddings",
	"embeddings":      "embeddings",
	"unet":            "diffusion_models",
	"diffusion_model": "diffusion_models",
}

// Request describes one install operation.
type Request struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Type     string `json:"type"`

	// SavePath names the destination root directly; "default" (or empty)
	// derives the root from Type instead.
	SavePath string `json:"save_path"`
}

// Installer downloads models and hands them to the store's write path.
type Installer struct {
	store   *assetd.Store
	log     *log.Logger
	client  *http.Client
	allowed []string
}

// NewInstaller creates an installer over the given store. An empty domain
// list falls back to DefaultAllowedDomains.
func NewInstaller(store *assetd.Store, allowedDomains []string) *Installer {
	if len(allowedDomains) == 0 {
		allowedDomains = DefaultAllowedDomains
	}

	return &Installer{
		store:   store,
		log:     store.Logger().Named("install"),
		client:  &http.Client{Timeout: 30 * time.Minute},
		allowed: allowedDomains,
	}
}

// Install validates the request, downloads the file and places it under the
// destination root. It refuses to overwrite an existing resource.
func (i *Installer) Install(ctx context.Context, req *Request) error {
	if req.URL == "" {
		return fmt.Errorf("%w: url is required", data.ErrInvalidResource)
	}
	if req.Filename == "" {
		return fmt.Errorf("%w: filename is required", data.ErrInvalidResource)
	}

	if err := i.checkDomain(req.URL); err != nil {
		return err
	}

	root, err := i.destinationRoot(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrInvalidResource, err)
	}
	// Some hosts refuse requests without a browser user agent.
	httpReq.Header.Set("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3")

	i.log.Info("Downloading '%s' to '%s/%s'", req.URL, root, req.Filename)

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: download failed: %v", data.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download failed with status %d", data.ErrUnavailable, resp.StatusCode)
	}

	written, err := i.store.Place(ctx, root, req.Filename, resp.Body)
	if err != nil {
		return err
	}

	i.log.Info("Installed '%s/%s' (%d bytes)", root, req.Filename, written)
	return nil
}

// checkDomain verifies the download host against the allow list.
// A leading "www." is ignored.
func (i *Installer) checkDomain(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid url format: %v", data.ErrInvalidResource, err)
	}

	domain := strings.TrimPrefix(parsed.Hostname(), "www.")
	for _, allowed := range i.allowed {
		if domain == allowed {
			return nil
		}
	}

	return fmt.Errorf("%w: %q", data.ErrDomainNotAllowed, domain)
}

// destinationRoot picks the root for the request: SavePath names it directly
// unless it is "default", in which case the model type decides.
func (i *Installer) destinationRoot(req *Request) (string, error) {
	if req.SavePath != "" && req.SavePath != "default" {
		return req.SavePath, nil
	}

	root, exists := typeRoots[strings.ToLower(req.Type)]
	if !exists {
		return "", fmt.Errorf("%w: unknown model type %q", data.ErrInvalidResource, req.Type)
	}

	return root, nil
}
