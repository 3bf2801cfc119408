package assets

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const VersionManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

type DownloadMetadata struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type VersionMetadata struct {
	Downloads map[string]*DownloadMetadata `json:"downloads"`
}

type Version struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Time        string `json:"time"`
	ReleaseTime string `json:"releaseTime"`
	URL         string `json:"url"`
}

type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []Version `json:"versions"`
}

// Release returns the version with the given id, or the latest release when
// id is empty.
func (v *VersionManifest) Release(id string) *Version {
	if id == "" {
		id = v.Latest.Release
	}
	for i := range v.Versions {
		if v.Versions[i].ID == id {
			return &v.Versions[i]
		}
	}
	return nil
}

// Downloader fetches version metadata and client jars from the launcher
// metadata service.
type Downloader struct {
	ManifestURL string
	Client      *http.Client
}

func NewDownloader() *Downloader {
	return &Downloader{
		ManifestURL: VersionManifestURL,
		Client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return resp, nil
}

func (d *Downloader) getJSON(ctx context.Context, url string, v interface{}) error {
	resp, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

func (d *Downloader) Manifest(ctx context.Context) (*VersionManifest, error) {
	var manifest VersionManifest
	if err := d.getJSON(ctx, d.ManifestURL, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (d *Downloader) Metadata(ctx context.Context, v *Version) (*VersionMetadata, error) {
	var meta VersionMetadata
	if err := d.getJSON(ctx, v.URL, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Download copies the file to dst and checks its size and SHA1 against the
// metadata.
func (d *Downloader) Download(ctx context.Context, meta *DownloadMetadata, dst io.Writer) error {
	resp, err := d.get(ctx, meta.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	hash := sha1.New()
	n, err := io.Copy(io.MultiWriter(dst, hash), resp.Body)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", meta.URL, err)
	}
	if meta.Size > 0 && n != meta.Size {
		return fmt.Errorf("download %s: expected %d bytes, got %d", meta.URL, meta.Size, n)
	}
	if sum := hex.EncodeToString(hash.Sum(nil)); meta.SHA1 != "" && sum != meta.SHA1 {
		return fmt.Errorf("download %s: checksum mismatch", meta.URL)
	}
	return nil
}

// ClientJAR downloads the client jar of version id ("" for the latest
// release) into dst.
func (d *Downloader) ClientJAR(ctx context.Context, id string, dst io.Writer) (*Version, error) {
	manifest, err := d.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	version := manifest.Release(id)
	if version == nil {
		return nil, fmt.Errorf("unknown version %q", id)
	}

	meta, err := d.Metadata(ctx, version)
	if err != nil {
		return nil, err
	}
	client, ok := meta.Downloads["client"]
	if !ok {
		return nil, fmt.Errorf("version %s has no client download", version.ID)
	}

	return version, d.Download(ctx, client, dst)
}
