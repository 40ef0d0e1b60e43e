// Package media pushes locally staged upload files to object storage and
// returns their canonical URLs.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Result describes a stored media asset.
type Result struct {
	URL             string
	DurationSeconds float64
}

// Store uploads staged files to a MinIO bucket.
type Store struct {
	Client        *minio.Client
	Bucket        string
	PublicBaseURL string
	Timeout       time.Duration
}

// Upload pushes the file at localPath into the bucket under objectKey and
// returns its browser-facing URL. The local file is removed after the
// attempt whether or not it succeeds. When probeDuration is set, the asset's
// duration is read with ffprobe; probe failures are logged and leave the
// duration at zero rather than failing the upload.
func (s *Store) Upload(ctx context.Context, localPath, objectKey string, probeDuration bool) (*Result, error) {
	if localPath == "" {
		return nil, fmt.Errorf("no staged file path")
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", localPath).Msg("failed to remove staged file")
		}
	}()

	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("staged file %s: %w", localPath, err)
	}

	var duration float64
	if probeDuration {
		d, err := probeDurationSeconds(localPath)
		if err != nil {
			log.Warn().Err(err).Str("path", localPath).Msg("duration probe failed")
		} else {
			duration = d
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	opts := minio.PutObjectOptions{ContentType: contentTypeFor(localPath)}
	if _, err := s.Client.FPutObject(ctx, s.Bucket, objectKey, localPath, opts); err != nil {
		return nil, fmt.Errorf("upload %s: %w", objectKey, err)
	}

	return &Result{
		URL:             s.PublicBaseURL + "/" + s.Bucket + "/" + objectKey,
		DurationSeconds: duration,
	}, nil
}

// StageFile copies one multipart file to a temp file on disk, preserving the
// extension so content-type detection and probing keep working. The caller
// owns the returned path; Upload removes it.
func StageFile(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open multipart file: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return dst.Name(), nil
}

// ObjectKey builds a collision-free object key under the given prefix,
// keeping the original extension.
func ObjectKey(prefix, filename string) string {
	return prefix + "/" + uuid.New().String() + strings.ToLower(filepath.Ext(filename))
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// probeDurationSeconds reads the container duration via ffprobe.
func probeDurationSeconds(path string) (float64, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output missing duration")
	}
	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	return d, nil
}
