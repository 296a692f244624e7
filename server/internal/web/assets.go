package web

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/devfront/devfront/server/internal/config"
)

// assetsMiddleware serves files from the first mount whose prefix matches and
// whose file exists. Misses fall through to the next handler.
func assetsMiddleware(mounts []config.AssetMount, skip func(string) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if skip(req.URL.Path) {
				return next(c)
			}
			for _, m := range mounts {
				file, ok := resolveAsset(m, req.URL.Path)
				if !ok {
					continue
				}
				c.Response().Header().Set("Cache-Control", cacheControl(m))
				return c.File(file)
			}
			return next(c)
		}
	}
}

// resolveAsset maps urlPath to a regular file inside m.Dir. Directories are
// served through their index.html.
func resolveAsset(m config.AssetMount, urlPath string) (string, bool) {
	rel, ok := stripPrefix(urlPath, m.Prefix)
	if !ok {
		return "", false
	}
	// Cleaning against "/" drops any ".." that would climb out of Dir.
	clean := path.Clean("/" + rel)
	file := filepath.Join(m.Dir, filepath.FromSlash(clean))

	fi, err := os.Stat(file)
	if err != nil {
		return "", false
	}
	if fi.IsDir() {
		file = filepath.Join(file, "index.html")
		if fi, err = os.Stat(file); err != nil || fi.IsDir() {
			return "", false
		}
	}
	return file, true
}

// stripPrefix matches whole path segments, so "/build" does not claim
// "/builder".
func stripPrefix(p, prefix string) (string, bool) {
	if prefix == "/" {
		return p, true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if p == prefix {
		return "/", true
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix):], true
	}
	return "", false
}

func cacheControl(m config.AssetMount) string {
	v := fmt.Sprintf("public, max-age=%d", int64(m.MaxAge.Seconds()))
	if m.Immutable {
		v += ", immutable"
	}
	return v
}
