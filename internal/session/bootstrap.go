package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/picoretain/internal/binding"
	"github.com/yndnr/picoretain/internal/core/domain"
)

// Bootstrap lists the declarations a session makes on a cold boot, when no
// retained state was restored.
//
//	resources:
//	  - key: demo/**
//	subscriptions:
//	  - key: demo/**
//	    reliability: reliable
//	    callback: on_sample
//	queryables:
//	  - key: demo/eval
//	    complete: true
//	    callback: on_query
type Bootstrap struct {
	Resources     []BootstrapResource     `yaml:"resources"`
	Subscriptions []BootstrapSubscription `yaml:"subscriptions"`
	Queryables    []BootstrapQueryable    `yaml:"queryables"`
}

// CallbackNames lists every callback and dropper name the bootstrap refers
// to, sorted and without duplicates. A host registers these before wake-up
// so retained entities can be rebound.
func (b *Bootstrap) CallbackNames() []string {
	var names []string
	for _, s := range b.Subscriptions {
		names = append(names, s.Callback, s.Dropper)
	}
	for _, q := range b.Queryables {
		names = append(names, q.Callback, q.Dropper)
	}
	slices.Sort(names)
	return slices.Compact(slices.DeleteFunc(names, func(n string) bool { return n == "" }))
}

// BootstrapResource declares a local resource.
type BootstrapResource struct {
	Key string `yaml:"key"`
}

// BootstrapSubscription declares a local subscription.
type BootstrapSubscription struct {
	Key         string `yaml:"key"`
	Reliability string `yaml:"reliability"`
	Mode        string `yaml:"mode"`
	Callback    string `yaml:"callback"`
	Dropper     string `yaml:"dropper"`
}

// BootstrapQueryable declares a local queryable.
type BootstrapQueryable struct {
	Key      string `yaml:"key"`
	Complete bool   `yaml:"complete"`
	Callback string `yaml:"callback"`
	Dropper  string `yaml:"dropper"`
}

// LoadBootstrap reads a bootstrap file.
func LoadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read bootstrap: %w", err)
	}
	return ParseBootstrap(data)
}

// ParseBootstrap decodes bootstrap YAML. Unknown fields are rejected.
func ParseBootstrap(data []byte) (*Bootstrap, error) {
	var b Bootstrap
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil && !errors.Is(err, io.EOF) {
		return nil, domain.ErrInvalidArgument.WithDetails("bootstrap file").WithCause(err)
	}
	return &b, nil
}

// Apply declares every entity of b on s. Callback names map to the ids the
// binding registry derives from them.
func (s *Session) Apply(b *Bootstrap) error {
	for i, r := range b.Resources {
		if _, err := s.DeclareResource(domain.KeyExpr{Suffix: r.Key}); err != nil {
			return fmt.Errorf("session: bootstrap resource %d: %w", i, err)
		}
	}
	for i, sub := range b.Subscriptions {
		rel, err := parseReliability(sub.Reliability)
		if err != nil {
			return fmt.Errorf("session: bootstrap subscription %d: %w", i, err)
		}
		mode, err := parseMode(sub.Mode)
		if err != nil {
			return fmt.Errorf("session: bootstrap subscription %d: %w", i, err)
		}
		_, err = s.Subscribe(domain.Local, SubscribeRequest{
			Key:         domain.KeyExpr{Suffix: sub.Key},
			Reliability: rel,
			Mode:        mode,
			Binding:     bindingFor(sub.Callback, sub.Dropper),
		})
		if err != nil {
			return fmt.Errorf("session: bootstrap subscription %d: %w", i, err)
		}
	}
	for i, q := range b.Queryables {
		_, err := s.DeclareQueryable(domain.KeyExpr{Suffix: q.Key}, q.Complete, bindingFor(q.Callback, q.Dropper))
		if err != nil {
			return fmt.Errorf("session: bootstrap queryable %d: %w", i, err)
		}
	}
	s.logger.Info("bootstrap applied",
		"resources", len(b.Resources),
		"subscriptions", len(b.Subscriptions),
		"queryables", len(b.Queryables))
	return nil
}

func bindingFor(callback, dropper string) domain.Binding {
	var b domain.Binding
	if callback != "" {
		b.Callback = domain.CallbackID(binding.IDFor(callback))
	}
	if dropper != "" {
		b.Dropper = domain.CallbackID(binding.IDFor(dropper))
	}
	return b
}

func parseReliability(s string) (domain.Reliability, error) {
	switch strings.ToLower(s) {
	case "", "best_effort", "best-effort":
		return domain.BestEffort, nil
	case "reliable":
		return domain.Reliable, nil
	}
	return 0, domain.ErrInvalidArgument.WithDetailsf("reliability %q", s)
}

func parseMode(s string) (domain.SubMode, error) {
	switch strings.ToLower(s) {
	case "", "push":
		return domain.Push, nil
	case "pull":
		return domain.Pull, nil
	}
	return 0, domain.ErrInvalidArgument.WithDetailsf("mode %q", s)
}
