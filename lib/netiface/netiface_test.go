package netiface

import (
	"testing"
)

func mustParse(t *testing.T, s string) IPv4Address {
	t.Helper()
	addr, err := ParseIPv4(s)
	if err != nil {
		t.Fatalf("Failed to parse %q: %v", s, err)
	}
	return addr
}

func TestParseIPv4(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.1.2.3", "10.1.2.3"},
		{"192.168", "192.168.0.0"},
		{"", "0.0.0.0"},
		{"255.255.255.255", "255.255.255.255"},
	}

	for _, tc := range tests {
		if got := mustParse(t, tc.in).String(); got != tc.want {
			t.Errorf("ParseIPv4(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}

	for _, invalid := range []string{"1.2.3.4.5", "256.0.0.1", "a.b", "1..2"} {
		if _, err := ParseIPv4(invalid); err == nil {
			t.Errorf("Expected error for %q", invalid)
		}
	}
}

func TestSelectPhysical(t *testing.T) {
	ifaces := []Interface{
		{Name: "lo", Address: mustParse(t, "127.0.0.1")},
		{Name: "docker0", Address: mustParse(t, "172.17.0.1")},
		{Name: "eth0", Address: mustParse(t, "10.0.0.5")},
		{Name: "wlp2s0", Address: mustParse(t, "192.168.1.20")},
		{Name: "enp3s0", Address: mustParse(t, "192.168.2.30")},
	}

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"exact match", "192.168.2.30", "192.168.2.30"},
		{"longest prefix", "192.168.2", "192.168.2.30"},
		{"first of equal matches", "192.168", "192.168.1.20"},
		{"non physical ignored", "172.17", "10.0.0.5"},
		{"no match", "8.8.8.8", "10.0.0.5"},
		{"empty prefix", "", "10.0.0.5"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectPhysical(ifaces, mustParse(t, tc.prefix))
			if got.String() != tc.want {
				t.Errorf("SelectPhysical(%q) = %s, want %s", tc.prefix, got, tc.want)
			}
		})
	}
}

func TestSelectPhysicalFallsBackToLoopback(t *testing.T) {
	ifaces := []Interface{
		{Name: "lo", Address: mustParse(t, "127.0.0.1")},
		{Name: "docker0", Address: mustParse(t, "172.17.0.1")},
	}
	if got := SelectPhysical(ifaces, mustParse(t, "172.17")); got != Loopback {
		t.Errorf("Expected loopback, got %s", got)
	}
	if got := SelectPhysical(nil, IPv4Address{}); got != Loopback {
		t.Errorf("Expected loopback for no interfaces, got %s", got)
	}
}

func TestInterfaces(t *testing.T) {
	ifaces, err := Interfaces()
	if err != nil {
		t.Fatalf("Failed to list interfaces: %v", err)
	}
	for _, iface := range ifaces {
		if iface.Name == "" {
			t.Errorf("Interface with address %s has no name", iface.Address)
		}
	}
}
