// Package config loads host-level judge sandbox configuration: cgroup mount
// root, jail base directory, and compile concurrency. All settings have
// defaults matching a bare installation; an INI file only overrides them.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/mvo5/goconfigparser"

	sberrors "judgesandbox/errors"
)

const (
	defaultCgroupRoot      = "/sys/fs/cgroup"
	defaultJailBaseDir     = "/var/lib/judgesandbox/jails"
	defaultCompileTimeout  = 5 * time.Second
	defaultCompileParallel = 4
)

// Host holds the settings read from an optional judgehost.conf file.
type Host struct {
	CgroupRoot      string
	JailBaseDir     string
	CompileTimeout  time.Duration
	CompileParallel int
}

// Default returns the settings a bare installation runs with, with no
// config file present.
func Default() Host {
	return Host{
		CgroupRoot:      defaultCgroupRoot,
		JailBaseDir:     defaultJailBaseDir,
		CompileTimeout:  defaultCompileTimeout,
		CompileParallel: defaultCompileParallel,
	}
}

// LoadFile reads an INI-style config file and overlays it onto Default().
// A missing file is not an error; LoadFile returns the defaults unchanged.
func LoadFile(path string) (Host, error) {
	host := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return host, nil
	}

	cfg := goconfigparser.New()
	cfg.AllowNoSectionHeader = true
	if err := cfg.ReadFile(path); err != nil {
		return Host{}, sberrors.WrapWithDetail(err, sberrors.ErrConfiguration, "config.LoadFile", path)
	}

	if v, err := cfg.Get("", "cgroup_root"); err == nil && v != "" {
		host.CgroupRoot = v
	}
	if v, err := cfg.Get("", "jail_base_dir"); err == nil && v != "" {
		host.JailBaseDir = v
	}
	if v, err := cfg.Get("", "compile_timeout_seconds"); err == nil && v != "" {
		seconds, parseErr := strconv.Atoi(v)
		if parseErr != nil {
			return Host{}, sberrors.WrapWithDetail(parseErr, sberrors.ErrConfiguration, "config.LoadFile", "compile_timeout_seconds")
		}
		host.CompileTimeout = time.Duration(seconds) * time.Second
	}
	if v, err := cfg.Get("", "compile_parallel"); err == nil && v != "" {
		n, parseErr := strconv.Atoi(v)
		if parseErr != nil {
			return Host{}, sberrors.WrapWithDetail(parseErr, sberrors.ErrConfiguration, "config.LoadFile", "compile_parallel")
		}
		host.CompileParallel = n
	}

	return host, nil
}
