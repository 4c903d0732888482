package common

import (
	"bytes"
	"github.com/lni/dragonboat/v4/logger"
	"os"
	"strings"
	"testing"
)

func TestParseLogLevels(t *testing.T) {
	tests := []struct {
		spec    string
		want    map[string]logger.LogLevel
		wantErr bool
	}{
		{
			spec: "",
			want: map[string]logger.LogLevel{"netsocket": logger.INFO, "asyncsocket": logger.INFO, "netiface": logger.INFO, "cmd": logger.INFO},
		},
		{
			spec: "warn",
			want: map[string]logger.LogLevel{"netsocket": logger.WARNING, "asyncsocket": logger.WARNING, "netiface": logger.WARNING, "cmd": logger.WARNING},
		},
		{
			spec: "error, netsocket=debug,cmd=info",
			want: map[string]logger.LogLevel{"netsocket": logger.DEBUG, "asyncsocket": logger.ERROR, "netiface": logger.ERROR, "cmd": logger.INFO},
		},
		{
			spec: "asyncsocket=debug",
			want: map[string]logger.LogLevel{"netsocket": logger.INFO, "asyncsocket": logger.DEBUG, "netiface": logger.INFO, "cmd": logger.INFO},
		},
		{spec: "verbose", wantErr: true},
		{spec: "info,raft=debug", wantErr: true},
		{spec: "info,netsocket=loud", wantErr: true},
		{spec: "netsocket=debug,warn", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevels(tt.spec)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLogLevels(%q): expected error, got %v", tt.spec, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLogLevels(%q): unexpected error: %v", tt.spec, err)
			continue
		}
		for name, lvl := range tt.want {
			if got[name] != lvl {
				t.Errorf("ParseLogLevels(%q)[%s] = %v, want %v", tt.spec, name, got[name], lvl)
			}
		}
	}
}

func TestInitLoggersOverride(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() { SetLogOutput(os.Stdout) })

	if err := InitLoggers("warn,netiface=debug"); err != nil {
		t.Fatalf("Failed to init loggers: %v", err)
	}

	logger.GetLogger("netiface").Debugf("visible %d", 1)
	logger.GetLogger("netsocket").Infof("hidden")
	logger.GetLogger("netsocket").Warningf("visible %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info line of netsocket to be filtered, got:\n%s", out)
	}
	if !strings.Contains(out, "DEBUG | netiface") || !strings.Contains(out, "visible 1") {
		t.Errorf("Expected debug line of netiface, got:\n%s", out)
	}
	if !strings.Contains(out, "WARN  | netsocket") || !strings.Contains(out, "visible 2") {
		t.Errorf("Expected warning line of netsocket, got:\n%s", out)
	}

	if err := InitLoggers("info,unknown=debug"); err == nil {
		t.Errorf("Expected error for unknown logger")
	}
}

func TestPanicf(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() { SetLogOutput(os.Stdout) })

	l := CreateLogger("cmd")
	l.SetLevel(logger.ERROR)

	defer func() {
		if r := recover(); r != "fatal 42" {
			t.Errorf("Expected panic with message, got %v", r)
		}
		if !strings.Contains(buf.String(), "CRIT  | cmd") {
			t.Errorf("Expected critical line, got:\n%s", buf.String())
		}
	}()
	l.Panicf("fatal %d", 42)
}
