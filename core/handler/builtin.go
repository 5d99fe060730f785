package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Builtin returns a registry populated with the in-process handler kinds.
func Builtin() *Registry {
	r := NewRegistry()
	// Registration of builtins cannot collide; ignore the error returns.
	_ = r.Register("static", newStatic)
	_ = r.Register("echo", newEcho)
	_ = r.Register("time", newTime)
	_ = r.Register("proxy", newProxy)
	_ = r.Register("file", newFile)
	return r
}

// static responds with a fixed body. Config: body (any, JSON-encoded),
// status (int), content_type (string).
func newStatic(_ string, cfg map[string]any) (http.Handler, error) {
	status := cfgInt(cfg, "status", http.StatusOK)
	contentType := cfgString(cfg, "content_type", "application/json")

	var body []byte
	if raw, ok := cfg["body"]; ok {
		if s, ok := raw.(string); ok && contentType != "application/json" {
			body = []byte(s)
		} else {
			data, err := json.Marshal(raw)
			if err != nil {
				return nil, fmt.Errorf("encode static body: %w", err)
			}
			body = data
		}
	} else {
		body = []byte("{}")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write(body)
	}), nil
}

// echo responds with a JSON description of the request.
func newEcho(_ string, _ map[string]any) (http.Handler, error) {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))

		resp := map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"query":  r.URL.Query(),
		}
		if len(body) > 0 {
			resp["body"] = string(body)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}), nil
}

// time responds with the current epoch time in seconds.
func newTime(_ string, _ map[string]any) (http.Handler, error) {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"time": float64(time.Now().UnixNano()) / float64(time.Second),
		})
	}), nil
}

// proxy forwards the request to a fixed upstream URL, preserving the query
// string. Config: upstream (required), timeout (seconds).
func newProxy(_ string, cfg map[string]any) (http.Handler, error) {
	upstream := cfgString(cfg, "upstream", "")
	if upstream == "" {
		return nil, fmt.Errorf("proxy handler requires an upstream url")
	}
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q must be http or https", upstream)
	}

	timeout := time.Duration(cfgInt(cfg, "timeout", 30)) * time.Second

	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			q := req.URL.RawQuery
			u := *target
			req.URL = &u
			if q != "" {
				if req.URL.RawQuery != "" {
					req.URL.RawQuery += "&" + q
				} else {
					req.URL.RawQuery = q
				}
			}
			req.Host = target.Host
		},
		Transport: &http.Transport{ResponseHeaderTimeout: timeout},
	}
	return rp, nil
}

// file serves one file from the module's own directory. Config: path
// (required, relative to the module directory).
func newFile(moduleDir string, cfg map[string]any) (http.Handler, error) {
	rel := cfgString(cfg, "path", "")
	if rel == "" {
		return nil, fmt.Errorf("file handler requires a path")
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("file path %q escapes the module directory", rel)
	}
	full := filepath.Join(moduleDir, clean)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, full)
	}), nil
}

func cfgString(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func cfgInt(cfg map[string]any, key string, def int) int {
	if v, ok := cfg[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}
