package cgroup

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sberrors "judgesandbox/errors"
)

// attrFile is a typed view of one cgroup attribute file, parameterized by
// how a value of type T is serialized to and deserialized from the file's
// decimal-string contents.
type attrFile[T any] struct {
	ctrl   Controller
	name   string
	encode func(T) string
	decode func(string) (T, error)
}

func (a attrFile[T]) path(c *Context) string {
	return filepath.Join(c.Path(a.ctrl), a.name)
}

func (a attrFile[T]) write(c *Context, v T) error {
	path := a.path(c)
	if err := os.WriteFile(path, []byte(a.encode(v)), 0644); err != nil {
		return sberrors.WrapWithDetail(sberrors.ErrCgroupWrite, sberrors.ErrIO, "cgroup.attrFile.write", path)
	}
	return nil
}

func (a attrFile[T]) read(c *Context) (T, error) {
	var zero T
	path := a.path(c)
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, sberrors.WrapWithDetail(sberrors.ErrCgroupRead, sberrors.ErrIO, "cgroup.attrFile.read", path)
	}
	v, err := a.decode(strings.TrimSpace(string(data)))
	if err != nil {
		return zero, sberrors.WrapWithDetail(err, sberrors.ErrIO, "cgroup.attrFile.read", path)
	}
	return v, nil
}

func encodeMicroseconds(d time.Duration) string {
	return strconv.FormatInt(d.Microseconds(), 10)
}

func decodeMicroseconds(s string) (time.Duration, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Microsecond, nil
}

func decodeNanoseconds(s string) (time.Duration, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(n), nil
}

// decodeNanosecondVector parses cpuacct.usage_percpu's one-line,
// space-separated list of per-cpu nanosecond counters into a vector of
// durations, one entry per online cpu.
func decodeNanosecondVector(s string) ([]time.Duration, error) {
	fields := strings.Fields(s)
	durations := make([]time.Duration, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, err
		}
		durations[i] = time.Duration(n)
	}
	return durations, nil
}

func encodeInt64(n int64) string {
	return strconv.FormatInt(n, 10)
}

func decodeInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

var (
	cpuPeriod = attrFile[time.Duration]{ctrl: CPU, name: "cpu.cfs_period_us", encode: encodeMicroseconds, decode: decodeMicroseconds}
	cpuQuota  = attrFile[time.Duration]{ctrl: CPU, name: "cpu.cfs_quota_us", encode: encodeMicroseconds, decode: decodeMicroseconds}

	cpuAcctUsage       = attrFile[time.Duration]{ctrl: CPUAcct, name: "cpuacct.usage", decode: decodeNanoseconds}
	cpuAcctUsagePerCPU = attrFile[[]time.Duration]{ctrl: CPUAcct, name: "cpuacct.usage_percpu", decode: decodeNanosecondVector}

	memLimit    = attrFile[int64]{ctrl: Memory, name: "memory.limit_in_bytes", encode: encodeInt64, decode: decodeInt64}
	memUsage    = attrFile[int64]{ctrl: Memory, name: "memory.usage_in_bytes", decode: decodeInt64}
	memMaxUsage = attrFile[int64]{ctrl: Memory, name: "memory.max_usage_in_bytes", decode: decodeInt64}
	memFailcnt  = attrFile[int64]{ctrl: Memory, name: "memory.failcnt", decode: decodeInt64}
	memSwap     = attrFile[int64]{ctrl: Memory, name: "memory.swappiness", encode: encodeInt64, decode: decodeInt64}
)

// SetCPUQuota writes cpu.cfs_period_us and cpu.cfs_quota_us, in that order.
func (c *Context) SetCPUQuota(period, quota time.Duration) error {
	if err := cpuPeriod.write(c, period); err != nil {
		return err
	}
	return cpuQuota.write(c, quota)
}

// CPUQuota reads back cpu.cfs_period_us and cpu.cfs_quota_us.
func (c *Context) CPUQuota() (period, quota time.Duration, err error) {
	period, err = cpuPeriod.read(c)
	if err != nil {
		return 0, 0, err
	}
	quota, err = cpuQuota.read(c)
	if err != nil {
		return 0, 0, err
	}
	return period, quota, nil
}

// CPUUsage reads cpuacct.usage (nanosecond resolution).
func (c *Context) CPUUsage() (time.Duration, error) {
	return cpuAcctUsage.read(c)
}

// CPUUsagePerCPU reads cpuacct.usage_percpu, returning one duration per
// online cpu in the order the kernel reports them.
func (c *Context) CPUUsagePerCPU() ([]time.Duration, error) {
	return cpuAcctUsagePerCPU.read(c)
}

// SetMemoryLimit writes memory.limit_in_bytes. A limit of 0 is accepted and
// written as-is; the sandbox does not reject it (the caller is responsible
// for rejecting invalid ResourceLimit values before they reach the cgroup).
func (c *Context) SetMemoryLimit(bytes int64) error {
	return memLimit.write(c, bytes)
}

// MemoryUsage reads memory.usage_in_bytes.
func (c *Context) MemoryUsage() (int64, error) {
	return memUsage.read(c)
}

// MaxMemoryUsage reads memory.max_usage_in_bytes.
func (c *Context) MaxMemoryUsage() (int64, error) {
	return memMaxUsage.read(c)
}

// MemoryFailcnt reads memory.failcnt.
func (c *Context) MemoryFailcnt() (int64, error) {
	return memFailcnt.read(c)
}

// SetSwappiness writes memory.swappiness.
func (c *Context) SetSwappiness(v int64) error {
	return memSwap.write(c, v)
}
