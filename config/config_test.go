package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single pair", "starter=price_123", map[string]string{"starter": "price_123"}},
		{
			"multiple pairs with whitespace",
			" starter=price_1 , growth=price_2 ",
			map[string]string{"starter": "price_1", "growth": "price_2"},
		},
		{"keys lower-cased", "PREMIER=price_9", map[string]string{"premier": "price_9"}},
		{"malformed entries dropped", "starter=,=price,loose,growth=price_2", map[string]string{"growth": "price_2"}},
		{"value may contain equals", "starter=a=b", map[string]string{"starter": "a=b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePairs(tt.in))
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	byParts := DatabaseConfig{
		Host: "db", Port: "5432", User: "portal", Password: "secret",
		DBName: "portal", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://portal:secret@db:5432/portal?sslmode=disable", byParts.DSN())

	byURL := DatabaseConfig{URL: "postgres://elsewhere/prod"}
	assert.Equal(t, "postgres://elsewhere/prod", byURL.DSN())
}
