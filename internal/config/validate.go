package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// maxUploadLimit caps server.max_upload_bytes; phone photos are well below it.
const maxUploadLimit = 64 << 20

// problems collects every validation failure so a bad file is fixed in one pass.
type problems []error

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p *problems) add(err error) {
	if err != nil {
		*p = append(*p, err)
	}
}

// Validate checks the loaded config for required fields and safe values.
// All failures are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs problems

	validateServer(&errs, cfg.Server)
	validateModel(&errs, cfg.Model)
	errs.add(validateHTTPURL("backend.base_url", cfg.Backend.BaseURL))
	validateImageHost(&errs, cfg.ImageHost)
	validateLocation(&errs, cfg.Location)
	validateSession(&errs, cfg.Session)
	if cfg.Quiz.QuestionsPerQuiz <= 0 {
		errs.addf("quiz.questions_per_quiz must be positive")
	}
	validateActivation(&errs, cfg.Activation)

	return errors.Join(errs...)
}

func validateServer(errs *problems, s ServerConfig) {
	if strings.TrimSpace(s.Addr) == "" {
		errs.addf("server.addr must be set")
	}
	if s.MaxUploadBytes > maxUploadLimit {
		errs.addf("server.max_upload_bytes must be at most %d", maxUploadLimit)
	}
}

func validateModel(errs *problems, m ModelConfig) {
	if strings.TrimSpace(m.Dir) == "" {
		errs.addf("model.dir must be set")
	}
	for field, name := range map[string]string{"model.model_file": m.ModelFile, "model.metadata_file": m.MetadataFile} {
		if name != filepath.Base(name) {
			errs.addf("%s must be a file name inside model.dir, got %q", field, name)
		}
	}
	if m.IntraOpThreads < 0 {
		errs.addf("model.intra_op_threads must not be negative")
	}
}

func validateHTTPURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must be set", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is invalid", field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https", field)
	}
	return nil
}

func validateImageHost(errs *problems, h ImageHostConfig) {
	if err := validateHTTPURL("image_host.base_url", h.BaseURL); err != nil {
		errs.add(err)
		return
	}
	if h.AllowPrivateNetworks {
		return
	}
	u, _ := url.Parse(h.BaseURL)
	if err := checkPublicHost(u.Hostname()); err != nil {
		errs.addf("image_host.base_url blocked: %w", err)
	}
}

func validateLocation(errs *problems, l LocationConfig) {
	if !l.Enabled {
		return
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		errs.addf("location.latitude out of range: %v", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		errs.addf("location.longitude out of range: %v", l.Longitude)
	}
}

func validateSession(errs *problems, s SessionConfig) {
	switch strings.ToLower(strings.TrimSpace(s.Store)) {
	case "file", "sqlite":
	default:
		errs.addf("session.store must be file or sqlite, got %q", s.Store)
	}
	if strings.TrimSpace(s.Key) == "" {
		errs.addf("session.key must be set")
	}
}

func validateActivation(errs *problems, a ActivationConfig) {
	for i, s := range a.Sinks {
		if s.MaxBytes < 0 {
			errs.addf("activation sink %d has negative max_bytes", i)
		}
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				errs.addf("activation sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				errs.addf("activation sink %d (webhook) missing url", i)
				continue
			}
			if err := validateHTTPURL(fmt.Sprintf("activation sink %d (webhook) url", i), s.URL); err != nil {
				errs.add(err)
			}
		default:
			errs.addf("activation sink %d has unknown type %q", i, s.Type)
		}
	}
}

var privateNets = func() []*net.IPNet {
	var out []*net.IPNet
	for _, cidr := range []string{
		"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
		"169.254.0.0/16", "::1/128", "fc00::/7", "fe80::/10",
	} {
		_, n, _ := net.ParseCIDR(cidr)
		out = append(out, n)
	}
	return out
}()

// checkPublicHost rejects loopback and private literals so uploads cannot be
// pointed at internal services. Hostnames other than localhost are not resolved.
func checkPublicHost(host string) error {
	if strings.EqualFold(host, "localhost") {
		return errors.New("private network host localhost blocked for SSRF safety")
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return fmt.Errorf("private network IP %s blocked for SSRF safety", ip)
		}
	}
	return nil
}
