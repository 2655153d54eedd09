package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fauxSyncWriter struct {
	b bytes.Buffer
}

func (f *fauxSyncWriter) Write(p []byte) (n int, err error) {
	return f.b.Write(p)
}

func (f *fauxSyncWriter) Sync() error {
	return nil
}

func TestDebugOnlyWhenVerbose(t *testing.T) {
	quiet := &fauxSyncWriter{}
	New(quiet, false).Debugf("tokens: %d", 3)
	New(quiet, false).Warningf("careful")
	assert.NotContains(t, quiet.b.String(), "tokens: 3")
	assert.Contains(t, quiet.b.String(), "careful")

	loud := &fauxSyncWriter{}
	New(loud, true).Debugf("tokens: %d", 3)
	assert.Contains(t, loud.b.String(), "tokens: 3")
}

func TestSet(t *testing.T) {
	prev := L()
	defer Set(prev)

	w := &fauxSyncWriter{}
	Set(New(w, false))
	L().Infof("hello")
	assert.Contains(t, w.b.String(), "hello")
}
