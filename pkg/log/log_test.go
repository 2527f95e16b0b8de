package log_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"embedvalkey/pkg/log"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordHandler struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordHandler) Log(lv log.Level, msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, lv.String()+" "+msg)
	r.mu.Unlock()
}

func (r *recordHandler) Close() error { return nil }

func TestLog(t *testing.T) {
	log.Init(&log.Config{
		Stdout: true,
		Debug:  true,
		Log:    t.TempDir() + "/embedvalkey.log",
		LogVL:  10,
	})

	log.Debugf("1(%s)", "test1")
	log.Infof("1(%s) 2(%s)", "test1", "test2")
	log.Warnf("1(%s) 2(%s) 3(%s)", "test1", "test2", "test3")
	log.Errorf("1(%s)", "test1")

	log.V(3).Warnf("this will be printing2:%s", "yeah")

	log.Errorf("stack:%+v", errors.New("this is a error"))

	if err := log.Close(); err != nil {
		t.Error(err)
	}
}

func TestDebugIsFiltered(t *testing.T) {
	r := &recordHandler{}
	log.InitHandle(r)
	defer log.InitHandle()

	log.SetDebug(false)
	log.Debugf("hidden %d", 1)
	log.Logf(log.InfoLevel, "shown %d", 2)
	log.SetDebug(true)
	log.Logf(log.DebugLevel, "shown %d", 3)

	assert.Equal(t, []string{"INFO shown 2", "DEBUG shown 3"}, r.msgs)
}

func TestVerbose(t *testing.T) {
	r := &recordHandler{}
	log.InitHandle(r)
	defer log.InitHandle()
	defer func(vl int) { log.DefaultVerboseLevel = vl }(log.DefaultVerboseLevel)

	log.DefaultVerboseLevel = 3
	if log.V(5) {
		log.Infof("hidden")
	}
	log.V(5).Warnf("hidden %d", 5)
	log.V(3).Infof("shown %d", 3)
	log.V(1).Warnf("shown %d", 1)

	assert.Equal(t, []string{"INFO shown 3", "WARN shown 1"}, r.msgs)
}

func TestParseLevel(t *testing.T) {
	lv, err := log.ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, lv)

	_, err = log.ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "LEVEL(9)", log.Level(9).String())
}

func TestZerologHandler(t *testing.T) {
	var buf bytes.Buffer
	h := log.NewZerologHandler(&buf)
	h.Log(log.WarnLevel, "port taken")
	h.Log(log.ErrorLevel, "boom")
	assert.NoError(t, h.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"warn"`)
	assert.Contains(t, lines[0], `"message":"port taken"`)
	assert.Contains(t, lines[1], `"level":"error"`)
}

func TestFileHandler(t *testing.T) {
	base := filepath.Join(t.TempDir(), "logs", "valkeyctl.log")
	h := log.NewFileHandler(base)
	h.Log(log.InfoLevel, "node started")
	require.NoError(t, h.Close())

	data, err := os.ReadFile(base + "." + time.Now().Format("2006-01-02"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"info"`)
	assert.Contains(t, string(data), `"message":"node started"`)
}
