package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/cassiomorais/tripcheckout/internal/application/checkout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  checkout.Kind
		shape string
		token string
		clean string
	}{
		{
			name:  "session success",
			raw:   "https://trips.example.com/checkout/return?status=success&session_id=cs_123&ref=mail",
			want:  checkout.KindSuccess,
			shape: "session",
			token: "session:cs_123",
			clean: "https://trips.example.com/checkout/return?ref=mail",
		},
		{
			name:  "flag only success",
			raw:   "https://trips.example.com/checkout/return?status=success",
			want:  checkout.KindSuccess,
			shape: "actor",
			clean: "https://trips.example.com/checkout/return",
		},
		{
			name:  "cancelled",
			raw:   "https://trips.example.com/checkout/return?status=cancelled",
			want:  checkout.KindCancelled,
			clean: "https://trips.example.com/checkout/return",
		},
		{
			name:  "plain load",
			raw:   "https://trips.example.com/checkout/return",
			want:  checkout.KindNone,
			clean: "https://trips.example.com/checkout/return",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := classifyURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Kind)
			assert.Equal(t, tt.shape, res.Shape)
			assert.Equal(t, tt.token, res.Token)
			assert.Equal(t, tt.clean, res.CleanURL)
		})
	}
}

func TestClassifyURL_Invalid(t *testing.T) {
	_, err := classifyURL("://bad")
	assert.Error(t, err)
}

func TestClassifyCommand(t *testing.T) {
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"classify", "https://trips.example.com/r?status=success&session_id=cs_9"})

	require.NoError(t, root.Execute())

	var res classifyResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, checkout.KindSuccess, res.Kind)
	assert.Equal(t, "session:cs_9", res.Token)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "intent", "classify", "token"})
}
