package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/popui/internal/session"
)

func TestFormatEntry(t *testing.T) {
	e := session.Entry{At: time.Now().Add(-3 * time.Minute), Popup: "news", Kind: session.KindError, Detail: "status 500"}
	assert.Equal(t, "3 minutes ago  error    news (status 500)", formatEntry(e))

	e = session.Entry{At: time.Now().Add(-3 * time.Minute), Kind: session.KindReload}
	assert.Equal(t, "3 minutes ago  reload   ", formatEntry(e))
}
