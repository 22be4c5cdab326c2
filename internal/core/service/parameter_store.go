package service

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/samber/lo"
)

const (
	PARAM_IP_ADDRESS    = "IP Address"
	PARAM_SERIAL_NUMBER = "Serial Number"
	PARAM_PASSWORD      = "Password"
	PARAM_UNSET_DEFAULT = "set me"
)

type Parameter struct {
	Name       string
	Default    string
	IsRequired bool
	Notice     string
	Secret     bool
}

// Key is the identifier used for the parameter on the hub side.
func (p Parameter) Key() string {
	return strings.ReplaceAll(slug.Make(p.Name), "-", "_")
}

func DefaultParameters(credentialed bool) []Parameter {
	params := []Parameter{
		{Name: PARAM_IP_ADDRESS, Default: PARAM_UNSET_DEFAULT, IsRequired: true, Notice: "Tesla gateway IP address must be set"},
	}
	if credentialed {
		params = append(params,
			Parameter{Name: PARAM_SERIAL_NUMBER, Default: PARAM_UNSET_DEFAULT, IsRequired: true, Notice: "Tesla gateway serial number must be set"},
			Parameter{Name: PARAM_PASSWORD, Default: PARAM_UNSET_DEFAULT, IsRequired: true, Notice: "Tesla gateway password must be set", Secret: true},
		)
	}
	return params
}

type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("unknown parameter %q", e.Name)
}

// ParameterStore tracks the current value of each declared parameter.
type ParameterStore struct {
	params []Parameter
	values map[string]string
}

func NewParameterStore(params []Parameter) *ParameterStore {
	values := make(map[string]string, len(params))
	for _, p := range params {
		values[p.Name] = p.Default
	}
	return &ParameterStore{
		params: params,
		values: values,
	}
}

// lookup accepts raw sets keyed either by hub key or by display name.
func lookup(raw map[string]string, p Parameter) (string, bool) {
	if v, ok := raw[p.Key()]; ok {
		return v, true
	}
	v, ok := raw[p.Name]
	return v, ok
}

// UpdateFromHub loads values from raw. Parameters missing from raw fall back to
// their default. changed reports whether any value differs from the previous
// snapshot and valid whether every required parameter is set.
func (s *ParameterStore) UpdateFromHub(raw map[string]string) (valid, changed bool) {
	for _, p := range s.params {
		value := p.Default
		if v, ok := lookup(raw, p); ok {
			value = strings.TrimSpace(v)
		}
		if s.values[p.Name] != value {
			changed = true
		}
		s.values[p.Name] = value
	}
	return s.Valid(), changed
}

// GetFromHub loads values from raw and reports whether all required parameters are set.
func (s *ParameterStore) GetFromHub(raw map[string]string) bool {
	valid, _ := s.UpdateFromHub(raw)
	return valid
}

func (s *ParameterStore) Valid() bool {
	return lo.EveryBy(s.params, func(p Parameter) bool {
		return !p.IsRequired || s.isSet(p)
	})
}

// isSet requires a value that is neither blank nor the default.
func (s *ParameterStore) isSet(p Parameter) bool {
	v := s.values[p.Name]
	return v != "" && v != p.Default
}

func (s *ParameterStore) Get(name string) (string, error) {
	v, ok := s.values[name]
	if !ok {
		return "", &MissingParameterError{Name: name}
	}
	return v, nil
}

// Notices returns one message per unmet required parameter, keyed by parameter key.
func (s *ParameterStore) Notices() map[string]string {
	notices := map[string]string{}
	for _, p := range s.params {
		if p.IsRequired && !s.isSet(p) {
			notices[p.Key()] = p.Notice
		}
	}
	return notices
}

func (s *ParameterStore) Parameters() []Parameter {
	return s.params
}
