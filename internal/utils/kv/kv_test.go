package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/conveyor/internal/utils/kv"
)

func TestParseSpecs(t *testing.T) {
	tests := map[string]struct {
		specs  []string
		expKVs map[string]string
		expErr bool
	}{
		"No specs should return an empty map.": {
			specs:  nil,
			expKVs: map[string]string{},
		},
		"Valid specs should be parsed.": {
			specs:  []string{"email=log", "report.build=complete"},
			expKVs: map[string]string{"email": "log", "report.build": "complete"},
		},
		"Spaces around key and value should be trimmed.": {
			specs:  []string{" email = log "},
			expKVs: map[string]string{"email": "log"},
		},
		"Repeated keys should keep the last value.": {
			specs:  []string{"email=log", "email=deny"},
			expKVs: map[string]string{"email": "deny"},
		},
		"A value containing '=' should keep everything after the first one.": {
			specs:  []string{"k=a=b"},
			expKVs: map[string]string{"k": "a=b"},
		},
		"An empty spec should fail.": {
			specs:  []string{""},
			expErr: true,
		},
		"A spec without separator should fail.": {
			specs:  []string{"email"},
			expErr: true,
		},
		"A spec without key should fail.": {
			specs:  []string{"=log"},
			expErr: true,
		},
		"A spec without value should fail.": {
			specs:  []string{"email="},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			got, err := kv.ParseSpecs(test.specs)
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expKVs, got)
		})
	}
}

func TestMergeMaps(t *testing.T) {
	tests := map[string]struct {
		base     map[string]string
		override map[string]string
		exp      map[string]string
	}{
		"Both empty should return an empty map.": {
			exp: map[string]string{},
		},
		"Override should win over base.": {
			base:     map[string]string{"a": "1", "b": "2"},
			override: map[string]string{"b": "3", "c": "4"},
			exp:      map[string]string{"a": "1", "b": "3", "c": "4"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, kv.MergeMaps(test.base, test.override))
		})
	}
}
