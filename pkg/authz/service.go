package authz

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"
)

//go:embed model.conf
var defaultModel string

//go:embed policy.csv
var defaultPolicy string

// Service provides helpers for enforcing authorization decisions.
type Service struct {
	cfg      Config
	enforcer *casbin.Enforcer
	logger   *logrus.Entry
	mu       sync.RWMutex
}

// NewService constructs a Service with the provided config.
func NewService(cfg Config) (*Service, error) {
	cfg.Mode = sanitizeMode(cfg.Mode)

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	m, err := loadModel(cfg.ModelPath)
	if err != nil {
		return nil, err
	}

	var enf *casbin.Enforcer
	if cfg.PolicyPath != "" {
		enf, err = casbin.NewEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
		if err == nil {
			err = enf.LoadPolicy()
		}
	} else {
		enf, err = casbin.NewEnforcer(m)
		if err == nil {
			err = loadPolicyText(enf, defaultPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}

	return &Service{
		cfg:      cfg,
		enforcer: enf,
		logger:   logger,
	}, nil
}

func loadModel(path string) (model.Model, error) {
	if path == "" {
		m, err := model.NewModelFromString(defaultModel)
		if err != nil {
			return nil, configError("invalid embedded model: %v", err)
		}
		return m, nil
	}
	m, err := model.NewModelFromFile(path)
	if err != nil {
		return nil, configError("failed to read model %s: %v", path, err)
	}
	return m, nil
}

// loadPolicyText loads "p, ..." and "g, ..." lines into enf.
func loadPolicyText(enf *casbin.Enforcer, text string) error {
	var policies, groupings [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch parts[0] {
		case "p":
			policies = append(policies, parts[1:])
		case "g":
			groupings = append(groupings, parts[1:])
		default:
			return configError("unknown policy type in line %q", line)
		}
	}
	if len(policies) > 0 {
		if _, err := enf.AddPolicies(policies); err != nil {
			return err
		}
	}
	if len(groupings) > 0 {
		if _, err := enf.AddGroupingPolicies(groupings); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Mode() Mode {
	return s.cfg.Mode
}

// Authorize returns an error if the request is denied. Shadow mode only logs
// denials.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	mode := s.cfg.Mode
	if mode == ModeDisabled {
		return nil
	}
	allowed, err := s.Check(ctx, req)
	if err != nil {
		return err
	}
	recordDecision(mode, req.Object, allowed)
	if allowed {
		return nil
	}

	entry := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"subject": req.Subject,
		"domain":  req.Domain,
		"object":  req.Object,
		"action":  req.Action,
		"mode":    mode,
	})
	if mode == ModeShadow {
		entry.Warn("authz shadow deny")
		return nil
	}
	entry.Warn("authz denied request")
	return forbiddenError(req)
}

// Check evaluates a request without returning an authorization error.
func (s *Service) Check(ctx context.Context, req Request) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.enforcer.Enforce(req.Subject, req.Domain, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return res, nil
}

// ReloadPolicy reloads policy data from the configured policy file.
func (s *Service) ReloadPolicy(ctx context.Context) error {
	if s.cfg.PolicyPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("authz: reload policy failed: %w", err)
	}
	s.logger.WithContext(ctx).Info("authz policy reloaded")
	return nil
}

var (
	defaultServiceOnce sync.Once
	defaultService     *Service
	defaultServiceErr  error
)

// Use returns a singleton Service configured via environment variables.
func Use() *Service {
	defaultServiceOnce.Do(func() {
		defaultService, defaultServiceErr = NewService(DefaultConfig())
	})
	if defaultServiceErr != nil {
		panic(defaultServiceErr)
	}
	return defaultService
}
