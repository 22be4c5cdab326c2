package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterKeys(t *testing.T) {
	assert := assert.New(t)
	keys := map[string]string{}
	for _, p := range DefaultParameters(true) {
		keys[p.Name] = p.Key()
	}
	assert.Equal(map[string]string{
		PARAM_IP_ADDRESS:    "ip_address",
		PARAM_SERIAL_NUMBER: "serial_number",
		PARAM_PASSWORD:      "password",
	}, keys)
}

func TestParameterStoreDefaultsAreInvalid(t *testing.T) {
	require := require.New(t)
	store := NewParameterStore(DefaultParameters(false))

	valid, changed := store.UpdateFromHub(map[string]string{})
	require.False(valid)
	require.False(changed)

	v, err := store.Get(PARAM_IP_ADDRESS)
	require.NoError(err)
	require.Equal(PARAM_UNSET_DEFAULT, v)

	require.Equal(map[string]string{"ip_address": "Tesla gateway IP address must be set"}, store.Notices())
}

func TestParameterStoreChangedOnlyOnTransition(t *testing.T) {
	require := require.New(t)
	store := NewParameterStore(DefaultParameters(false))

	valid, changed := store.UpdateFromHub(map[string]string{"ip_address": "192.168.91.1"})
	require.True(valid)
	require.True(changed)

	valid, changed = store.UpdateFromHub(map[string]string{"IP Address": "192.168.91.1"})
	require.True(valid)
	require.False(changed)

	valid, changed = store.UpdateFromHub(map[string]string{})
	require.False(valid)
	require.True(changed)
}

func TestParameterStoreExplicitDefaultIsUnset(t *testing.T) {
	store := NewParameterStore(DefaultParameters(false))
	require.False(t, store.GetFromHub(map[string]string{"ip_address": "set me"}))
	require.False(t, store.GetFromHub(map[string]string{"ip_address": "  "}))
	// blank values count as unset even though they differ from the default
	blank := NewParameterStore(DefaultParameters(false))
	valid, changed := blank.UpdateFromHub(map[string]string{"ip_address": ""})
	require.False(t, valid)
	require.True(t, changed)
	require.Contains(t, blank.Notices(), "ip_address")
}

func TestParameterStoreCredentialed(t *testing.T) {
	require := require.New(t)
	store := NewParameterStore(DefaultParameters(true))

	require.False(store.GetFromHub(map[string]string{"ip_address": "10.0.0.2", "password": "pw"}))
	require.Equal(map[string]string{"serial_number": "Tesla gateway serial number must be set"}, store.Notices())

	require.True(store.GetFromHub(map[string]string{"ip_address": "10.0.0.2", "password": "pw", "serial_number": "TG1"}))
	require.Empty(store.Notices())
}

func TestParameterStoreUnknownName(t *testing.T) {
	store := NewParameterStore(DefaultParameters(false))
	_, err := store.Get("Port")
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "Port", missing.Name)
}
