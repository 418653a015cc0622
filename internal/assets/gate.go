// Package assets guards delivery of the protected theme asset. The gate
// delegates every authorization decision to the shared license policy, so
// the asset endpoint and the validate endpoint can never disagree.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/velvetthemes/licensing/internal/license"
)

// ContentType is the content type of the protected asset.
const ContentType = "text/css; charset=utf-8"

// ErrAssetMissing is returned when the asset file is absent on the serving
// host. Distinct from authorization denials: the caller was entitled to the
// asset but the host cannot produce it.
var ErrAssetMissing = errors.New("theme asset missing")

// Authorizer applies the shared license policy without side effects. The
// lifecycle engine implements it.
type Authorizer interface {
	AuthorizeAsset(ctx context.Context, key, callerStore string) (license.Decision, error)
}

// Gate authorizes and opens the protected theme asset.
type Gate struct {
	authorizer Authorizer
	assetPath  string
	logger     *slog.Logger
}

// NewGate creates an asset gate serving the file at assetPath.
func NewGate(authorizer Authorizer, assetPath string, logger *slog.Logger) *Gate {
	return &Gate{
		authorizer: authorizer,
		assetPath:  assetPath,
		logger:     logger.With(slog.String("component", "asset_gate")),
	}
}

// Authorize decides whether key/callerStore may fetch the asset. It returns
// license.ErrNotFound for unknown keys; otherwise the decision carries the
// grant/deny outcome.
func (g *Gate) Authorize(ctx context.Context, key, callerStore string) (license.Decision, error) {
	decision, err := g.authorizer.AuthorizeAsset(ctx, key, callerStore)
	if err != nil {
		return 0, err
	}
	if !decision.Granted() {
		g.logger.InfoContext(ctx, "asset request denied",
			slog.String("key", license.MaskKey(key)),
			slog.String("caller_store", callerStore),
			slog.String("decision", decision.String()))
	}
	return decision, nil
}

// Open returns a reader over the asset bytes. The asset's existence on disk
// is an external concern surfaced as ErrAssetMissing.
func (g *Gate) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(g.assetPath)
	if errors.Is(err, os.ErrNotExist) {
		g.logger.ErrorContext(ctx, "theme asset not found on host",
			slog.String("path", g.assetPath))
		return nil, ErrAssetMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open theme asset: %w", err)
	}
	return f, nil
}
