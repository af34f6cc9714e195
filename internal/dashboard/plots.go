package dashboard

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/har/internal/httputil"
	"github.com/banshee-data/har/internal/security"
)

// handlePlots lists the PNG files in PlotsDir at /plots/ and serves one
// at /plots/<name>.
func (s *Server) handlePlots(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/plots/")
	if name == "" {
		names, err := listPlots(s.cfg.PlotsDir)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string][]string{"plots": names})
		return
	}

	if filepath.Ext(name) != ".png" {
		httputil.NotFound(w, "not found")
		return
	}
	path, err := security.ResolveWithin(s.cfg.PlotsDir, name)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if _, err := os.Stat(path); err != nil {
		httputil.NotFound(w, "plot not found")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// listPlots returns the sorted PNG names in dir. A missing directory means
// nothing has been written yet.
func listPlots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".png" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
