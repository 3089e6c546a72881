// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package connstring parses the driver's connection URI into seeds,
// credentials, the default database, and an options map, per §4.2.
package connstring

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme is the URI scheme this driver reserves.
const Scheme = "coredb"

// DefaultPort is used for any host that does not specify one explicitly.
const DefaultPort = 27017

// Host is one seed: either a hostname/IP and port, or a UNIX socket path.
type Host struct {
	HostName string
	Port     int
	IPC      string // non-empty for a UNIX domain socket seed
}

// HasIPC reports whether this Host is a UNIX domain socket path.
func (h Host) HasIPC() bool { return h.IPC != "" }

// String renders the host the way it should appear in a canonical address.
func (h Host) String() string {
	if h.HasIPC() {
		return h.IPC
	}
	return fmt.Sprintf("%s:%d", h.HostName, h.Port)
}

// TagSet is one alternative set of tags a server's tags must be a superset
// of, per §3's ReadPreference.
type TagSet map[string]string

// ConnString is the parsed form of a connection URI.
type ConnString struct {
	Hosts    []Host
	User     string
	Password string
	HasAuth  bool
	Database string

	Options         map[string]string
	ReadPreference  string
	ReadPrefTagSets []TagSet
}

// Parse parses uri into a ConnString, per §4.2.
func Parse(uri string) (*ConnString, error) {
	prefix := Scheme + "://"
	if !strings.HasPrefix(uri, prefix) {
		return nil, fmt.Errorf("connstring: URI must begin with %q", prefix)
	}
	rest := uri[len(prefix):]

	var userInfo, hostPart, pathPart string
	if at := lastUnescapedIndex(rest, '@'); at != -1 {
		userInfo = rest[:at]
		rest = rest[at+1:]
	}

	if q := strings.IndexByte(rest, '?'); q != -1 {
		hostPart = rest[:q]
		pathPart = rest[q:]
	} else {
		hostPart = rest
	}

	var hostsRaw, dbPart string
	if strings.HasPrefix(hostPart, "/") {
		// UNIX socket path(s), each ending in ".sock"; the trailing
		// "/database" segment, if any, follows the LAST ".sock" in the
		// host list.
		hostsRaw, dbPart = splitSocketHosts(hostPart)
	} else if slash := strings.IndexByte(hostPart, '/'); slash != -1 {
		hostsRaw = hostPart[:slash]
		dbPart = hostPart[slash+1:]
	} else {
		hostsRaw = hostPart
	}

	cs := &ConnString{
		Database: "test",
		Options:  map[string]string{},
	}

	if userInfo != "" {
		user, pass, err := parseUserInfo(userInfo)
		if err != nil {
			return nil, err
		}
		cs.User, cs.Password, cs.HasAuth = user, pass, true
	}

	hosts, err := parseHosts(hostsRaw)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("connstring: at least one host is required")
	}
	if err := checkUniqueHosts(hosts); err != nil {
		return nil, err
	}
	cs.Hosts = hosts

	if dbPart != "" {
		cs.Database = dbPart
	}

	if pathPart != "" {
		if err := parseOptions(cs, strings.TrimPrefix(pathPart, "?")); err != nil {
			return nil, err
		}
	}

	return cs, nil
}

func splitSocketHosts(hostPart string) (hostsRaw, dbPart string) {
	const sock = ".sock"
	idx := strings.LastIndex(hostPart, sock)
	if idx == -1 {
		// No socket path: the host list is empty and the rest names the
		// database.
		return "", strings.TrimPrefix(hostPart, "/")
	}
	end := idx + len(sock)
	hostsRaw = hostPart[:end]
	remainder := hostPart[end:]
	remainder = strings.TrimPrefix(remainder, "/")
	dbPart = remainder
	return hostsRaw, dbPart
}

func parseUserInfo(userInfo string) (user, pass string, err error) {
	idx := lastUnescapedIndex(userInfo, ':')
	var userRaw, passRaw string
	if idx == -1 {
		userRaw = userInfo
	} else {
		userRaw = userInfo[:idx]
		passRaw = userInfo[idx+1:]
	}
	user, err = unescapeCredential(userRaw)
	if err != nil {
		return "", "", err
	}
	pass, err = unescapeCredential(passRaw)
	if err != nil {
		return "", "", err
	}
	return user, pass, nil
}

// unescapeCredential allows a bare '#' (percent-encoding optional) but
// requires ':', '/', '?', '@' to be percent-encoded, per §4.2.
func unescapeCredential(s string) (string, error) {
	for _, c := range []byte{':', '/', '?', '@'} {
		if strings.IndexByte(s, c) != -1 {
			return "", fmt.Errorf("connstring: unescaped %q in user info", string(c))
		}
	}
	return url.QueryUnescape(s)
}

func lastUnescapedIndex(s string, c byte) int {
	// The last unescaped '@' separates user info from the host list; since
	// '@' must be percent-encoded within user info, a literal '@' found
	// from the right is always the separator.
	return strings.LastIndexByte(s, c)
}

func parseHosts(raw string) ([]Host, error) {
	if raw == "" {
		return nil, nil
	}
	parts := splitSocketAware(raw)
	hosts := make([]Host, 0, len(parts))
	for _, p := range parts {
		h, err := parseHost(p)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// splitSocketAware splits the host list on every ','. A UNIX path that
// itself contains a comma is split as well.
func splitSocketAware(raw string) []string {
	return strings.Split(raw, ",")
}

func parseHost(p string) (Host, error) {
	if p == "" {
		return Host{}, fmt.Errorf("connstring: empty host in host list")
	}
	if strings.HasPrefix(p, "/") {
		return Host{IPC: p}, nil
	}
	if strings.HasPrefix(p, "[") {
		// IPv6 literal: [::1]:27017
		end := strings.IndexByte(p, ']')
		if end == -1 {
			return Host{}, fmt.Errorf("connstring: unterminated IPv6 literal %q", p)
		}
		hostName := p[1:end]
		port := DefaultPort
		if rest := p[end+1:]; strings.HasPrefix(rest, ":") {
			n, err := strconv.Atoi(rest[1:])
			if err != nil {
				return Host{}, fmt.Errorf("connstring: invalid port in %q", p)
			}
			port = n
		}
		return Host{HostName: hostName, Port: port}, nil
	}
	if idx := strings.LastIndexByte(p, ':'); idx != -1 {
		n, err := strconv.Atoi(p[idx+1:])
		if err != nil {
			return Host{}, fmt.Errorf("connstring: invalid port in %q", p)
		}
		return Host{HostName: p[:idx], Port: n}, nil
	}
	return Host{HostName: p, Port: DefaultPort}, nil
}

func checkUniqueHosts(hosts []Host) error {
	seen := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		key := strings.ToLower(h.String())
		if seen[key] {
			return fmt.Errorf("connstring: duplicate host %q", key)
		}
		seen[key] = true
	}
	return nil
}

func parseOptions(cs *ConnString, query string) error {
	if query == "" {
		return nil
	}
	query = strings.NewReplacer(";", "&").Replace(query)
	haveReadPref := false
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		var key, val string
		if eq := strings.IndexByte(pair, '='); eq != -1 {
			key, val = pair[:eq], pair[eq+1:]
		} else {
			key = pair
		}
		decoded, err := url.QueryUnescape(val)
		if err != nil {
			return fmt.Errorf("connstring: invalid option value for %q: %w", key, err)
		}

		switch key {
		case "readPreference":
			if haveReadPref {
				return fmt.Errorf("connstring: readPreference specified more than once")
			}
			haveReadPref = true
			cs.ReadPreference = decoded
		case "readPreferenceTags":
			cs.ReadPrefTagSets = append(cs.ReadPrefTagSets, parseTagSet(decoded))
		default:
			cs.Options[key] = decoded
		}
	}
	return nil
}

func parseTagSet(s string) TagSet {
	ts := TagSet{}
	if s == "" {
		return ts
	}
	for _, kv := range strings.Split(s, ",") {
		if kv == "" {
			continue
		}
		if idx := strings.IndexByte(kv, ':'); idx != -1 {
			ts[kv[:idx]] = kv[idx+1:]
		}
	}
	return ts
}
