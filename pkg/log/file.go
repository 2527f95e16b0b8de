// Copyright 2016 CodisLabs. All Rights Reserved.
// Licensed under the MIT (MIT-LICENSE.txt) license.

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	dailyRolling = "2006-01-02"
)

// fileHandler writes JSON lines to <basePath>.<date>, switching files at
// midnight.
type fileHandler struct {
	mu sync.Mutex
	l  zerolog.Logger

	f        *os.File
	basePath string
	fileFrag string
	now      func() time.Time
}

// NewFileHandler new file handler.
func NewFileHandler(basePath string) Handler {
	if _, file := filepath.Split(basePath); file == "" {
		panic("invalid base path")
	}
	f := &fileHandler{basePath: basePath, now: time.Now}
	if err := f.roll(); err != nil {
		panic(err)
	}
	return f
}

func (r *fileHandler) Log(lv Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.roll(); err != nil {
		fmt.Fprintf(os.Stderr, "log: roll %s: %v\n", r.basePath, err)
		return
	}
	event(&r.l, lv).Msg(msg)
}

func (r *fileHandler) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *fileHandler) roll() error {
	suffix := r.now().Format(dailyRolling)
	if r.f != nil {
		if suffix == r.fileFrag {
			return nil
		}
		r.f.Close()
		r.f = nil
	}
	if dir, _ := filepath.Split(r.basePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(r.basePath+"."+suffix, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	r.f, r.fileFrag = f, suffix
	r.l = zerolog.New(f).With().Timestamp().Logger()
	return nil
}
