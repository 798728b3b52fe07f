package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_StderrOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()

	c, err := Setup(logger, &buf, logrus.WarnLevel, "")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	logger.Info("hidden")
	logger.WithField("url", "https://h/x").Warn("retry")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "url=\"https://h/x\"")
}

func TestSetup_FileSink(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	file := filepath.Join(t.TempDir(), "logs", "bbbdl.log")

	c, err := Setup(logger, &buf, logrus.DebugLevel, file)
	require.NoError(t, err)

	logger.WithField("file", "metadata.xml").Debug("下载完成")
	require.NoError(t, c.Close())

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	line := strings.TrimSpace(string(b))
	assert.Contains(t, line, `"msg":"下载完成"`)
	assert.Contains(t, line, `"file":"metadata.xml"`)
	assert.Contains(t, buf.String(), "下载完成")
}
