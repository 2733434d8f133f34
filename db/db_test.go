package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDBName(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017/quiz":                 "quiz",
		"mongodb://localhost:27017":                      "votematch",
		"mongodb://localhost:27017/":                     "votematch",
		"mongodb+srv://u:p@cluster.example.net/prod?w=1": "prod",
		"://bad":                                         "votematch",
	}
	for uri, want := range cases {
		assert.Equal(t, want, extractDBName(uri), uri)
	}
}
