package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func logEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestRequestLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(RequestLogger(logrus.NewEntry(l)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	tests := []struct {
		path  string
		level logrus.Level
	}{
		{"/ok", logrus.InfoLevel},
		{"/missing", logrus.WarnLevel},
		{"/fail", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		hook.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
		entry := hook.LastEntry()
		if entry == nil {
			t.Fatalf("%s: no log entry", tt.path)
		}
		if entry.Level != tt.level {
			t.Errorf("%s: level = %v, want %v", tt.path, entry.Level, tt.level)
		}
		if entry.Data["path"] != tt.path {
			t.Errorf("%s: path field = %v", tt.path, entry.Data["path"])
		}
	}
}
