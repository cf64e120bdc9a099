//go:build linux

package hotspot

import (
	"context"
	goerrors "errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"

	"github.com/coral-mesh/injector/internal/attacher"
	"github.com/coral-mesh/injector/internal/constants"
	"github.com/coral-mesh/injector/internal/errors"
	"github.com/coral-mesh/injector/internal/privilege"
	"github.com/coral-mesh/injector/internal/retry"
	"github.com/coral-mesh/injector/internal/safe"
	"github.com/coral-mesh/injector/internal/sys/proc"
)

// targetInfo is what the injector needs to know about a target process.
type targetInfo struct {
	name     string
	identity privilege.Identity
}

// Facility attaches to HotSpot JVMs on this host.
type Facility struct {
	logger zerolog.Logger
	proc   proc.FS

	attachTimeout time.Duration
	poll          retry.Config

	exists     func(ctx context.Context, pid int32) (bool, error)
	inspect    func(ctx context.Context, pid int32) (targetInfo, error)
	signal     func(pid int, sig unix.Signal) error
	checkOwner func(path string, id privilege.Identity) error
}

var _ attacher.Facility = (*Facility)(nil)

// New creates a Facility reading process information from the proc
// filesystem named by HOST_PROC (default /proc).
func New(logger zerolog.Logger) *Facility {
	return &Facility{
		logger:        logger.With().Str("component", "hotspot").Logger(),
		proc:          proc.FromEnv(),
		attachTimeout: constants.AttachTimeout,
		poll: retry.Config{
			InitialBackoff: constants.AttachPollInitial,
			MaxBackoff:     constants.AttachPollMax,
		},
		exists:     process.PidExistsWithContext,
		inspect:    inspectProcess,
		signal:     unix.Kill,
		checkOwner: checkOwner,
	}
}

// inspectProcess reads the name and effective uid/gid of pid.
func inspectProcess(ctx context.Context, pid int32) (targetInfo, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return targetInfo{}, err
	}

	uids, err := p.UidsWithContext(ctx)
	if err != nil {
		return targetInfo{}, fmt.Errorf("failed to read uids: %w", err)
	}
	gids, err := p.GidsWithContext(ctx)
	if err != nil {
		return targetInfo{}, fmt.Errorf("failed to read gids: %w", err)
	}
	// Real, effective, saved and filesystem ids, in that order.
	if len(uids) < 2 || len(gids) < 2 {
		return targetInfo{}, fmt.Errorf("incomplete credentials for pid %d", pid)
	}

	name, err := p.NameWithContext(ctx)
	if err != nil {
		name = "unknown"
	}

	return targetInfo{
		name:     name,
		identity: privilege.Identity{UID: int(uids[1]), GID: int(gids[1])},
	}, nil
}

// Attach makes sure the JVM behind targetID runs its attach listener and
// returns a handle to it.
func (f *Facility) Attach(ctx context.Context, targetID string) (attacher.Handle, error) {
	pid64, err := strconv.ParseInt(targetID, 10, 32)
	if err != nil || pid64 <= 0 {
		return nil, errors.Newf(errors.KindTargetNotFound, "target %q is not a process id", targetID)
	}
	pid := int(pid64)

	exists, err := f.exists(ctx, int32(pid))
	if err != nil {
		return nil, errors.Newf(errors.KindTargetNotFound, "failed to look up pid %d: %w", pid, err)
	}
	if !exists {
		return nil, errors.Newf(errors.KindTargetNotFound, "no process with pid %d", pid)
	}

	info, err := f.inspect(ctx, int32(pid))
	if err != nil {
		return nil, errors.Newf(errors.KindTargetNotFound, "failed to inspect pid %d: %w", pid, err)
	}

	nsPid, err := f.proc.NamespacePID(pid)
	if err != nil {
		return nil, errors.Newf(errors.KindTargetNotFound, "failed to read namespace pid of %d: %w", pid, err)
	}

	sharedRoot, err := f.proc.SharesRoot(pid)
	if err != nil {
		return nil, errors.Newf(errors.KindAttachRejected, "cannot access filesystem of pid %d: %w", pid, err)
	}

	cwd, err := f.proc.Cwd(pid)
	if err != nil {
		f.logger.Debug().Err(err).Int("pid", pid).Msg("Cannot read target cwd, trigger file goes to /tmp")
		cwd = ""
	}

	v := &vm{
		logger: f.logger.With().
			Int("pid", pid).
			Int("ns_pid", nsPid).
			Str("process", info.name).
			Logger(),
		pid:        pid,
		nsPid:      nsPid,
		target:     info.identity,
		root:       f.proc.RootDir(pid),
		cwd:        cwd,
		sharedRoot: sharedRoot,
		checkOwner: f.checkOwner,
	}
	v.socketPath = filepath.Join(v.root, "tmp", constants.SocketPrefix+strconv.Itoa(nsPid))

	if !isSocket(v.socketPath) {
		if err := f.startListener(ctx, v); err != nil {
			return nil, err
		}
	}

	if err := f.checkOwner(v.socketPath, v.target); err != nil {
		return nil, errors.New(errors.KindAttachRejected, err)
	}

	v.logger.Debug().
		Str("socket", v.socketPath).
		Stringer("identity", v.target).
		Bool("shared_root", sharedRoot).
		Msg("Attach listener ready")

	return v, nil
}

// startListener asks the JVM to open its attach socket and waits for it.
func (f *Facility) startListener(ctx context.Context, v *vm) error {
	trigger, err := v.createTrigger()
	if err != nil {
		return err
	}
	defer errors.DeferRemove(v.logger, trigger, os.Remove)

	if err := f.signal(v.pid, unix.SIGQUIT); err != nil {
		switch {
		case goerrors.Is(err, unix.ESRCH):
			return errors.Newf(errors.KindTargetNotFound, "process %d exited before attach: %w", v.pid, err)
		default:
			return errors.Newf(errors.KindAttachRejected, "failed to signal process %d: %w", v.pid, err)
		}
	}
	v.logger.Debug().Str("trigger", trigger).Msg("Sent SIGQUIT, waiting for attach socket")

	waitCtx, cancel := context.WithTimeout(ctx, f.attachTimeout)
	defer cancel()

	err = retry.Until(waitCtx, f.poll, func() (bool, error) {
		return isSocket(v.socketPath), nil
	})
	if err != nil {
		return errors.Newf(errors.KindTargetNotFound, "process %d did not open an attach socket within %s: %w", v.pid, f.attachTimeout, err)
	}
	return nil
}

// createTrigger creates the .attach_pid file as the target's identity, first
// in the target's working directory and then in its /tmp. The JVM ignores
// trigger files not owned by its own euid.
func (v *vm) createTrigger() (string, error) {
	name := constants.TriggerPrefix + strconv.Itoa(v.nsPid)

	var dirs []string
	if v.cwd != "" {
		dirs = append(dirs, filepath.Join(v.root, v.cwd))
	}
	dirs = append(dirs, filepath.Join(v.root, "tmp"))

	var lastErr error
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		err := privilege.WithIdentity(v.target, func() error {
			//nolint:gosec // G304: Path is inside the target's filesystem.
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o660)
			if err != nil {
				return err
			}
			return f.Close()
		})
		if goerrors.Is(err, privilege.ErrNotPermitted) {
			return "", errors.Newf(errors.KindAttachRejected, "process %d runs as %s: %w", v.pid, v.target, err)
		}
		if err != nil {
			lastErr = err
			continue
		}

		// Some filesystems override the owner on create.
		if err := v.checkOwner(path, v.target); err != nil {
			errors.DeferRemove(v.logger, path, os.Remove)
			lastErr = err
			continue
		}
		return path, nil
	}

	return "", errors.Newf(errors.KindAttachRejected, "failed to create attach trigger for process %d: %w", v.pid, lastErr)
}

// vm is an attached JVM.
type vm struct {
	logger zerolog.Logger

	pid        int
	nsPid      int
	target     privilege.Identity
	root       string // target filesystem, seen from here
	cwd        string // target working directory, seen by the target
	sharedRoot bool
	socketPath string
	checkOwner func(path string, id privilege.Identity) error

	staged   []string
	detached bool
}

var _ attacher.Handle = (*vm)(nil)

// LoadModule asks the JVM to load the agent at path.
func (v *vm) LoadModule(ctx context.Context, path, options string) error {
	if v.detached {
		return errors.Newf(errors.KindModuleLoadFailed, "handle for process %d is detached", v.pid)
	}

	if _, err := safe.RegularFile(path); err != nil {
		return errors.Newf(errors.KindModuleLoadFailed, "module %s: %w", path, err)
	}

	loadPath := path
	if v.needsStaging() {
		staged, err := v.stage(path)
		if err != nil {
			return errors.Newf(errors.KindModuleLoadFailed, "failed to stage %s into process %d: %w", path, v.pid, err)
		}
		loadPath = staged
	}

	cmd := loadCommand(loadPath, options)
	resp, err := execute(ctx, v.dial, cmd, v.logger)
	if err != nil {
		return err
	}
	if err := resp.loadError(cmd, loadPath); err != nil {
		return err
	}

	v.logger.Debug().Str("agent", loadPath).Str("output", resp.output).Msg("Agent loaded")
	return nil
}

// needsStaging reports whether the module must be copied into the target's
// /tmp: the target cannot see our paths, or it runs as another user and may
// not be able to read the original.
func (v *vm) needsStaging() bool {
	return !v.sharedRoot || v.target != privilege.Current()
}

// dial connects to the attach socket as the target's identity, since the JVM
// checks the peer credentials of every connection.
func (v *vm) dial(ctx context.Context) (net.Conn, error) {
	var conn net.Conn
	err := privilege.WithIdentity(v.target, func() error {
		var err error
		conn, err = unixDialer(v.socketPath)(ctx)
		return err
	})
	return conn, err
}

// stage copies the module into the target's /tmp and returns its path as the
// target sees it.
func (v *vm) stage(path string) (string, error) {
	name := fmt.Sprintf("injector-%d-%s", os.Getpid(), filepath.Base(path))
	hostPath := filepath.Join(v.root, "tmp", name)

	err := safe.CopyFile(path, hostPath, &safe.CopyFileOptions{
		MaxSize:       constants.MaxModuleSize,
		DestPerm:      0o444,
		AllowSymlinks: true,
		Exclusive:     true,
	})
	if err != nil {
		return "", err
	}
	v.staged = append(v.staged, hostPath)

	if err := privilege.Chown(hostPath, v.target); err != nil {
		return "", err
	}

	v.logger.Debug().Str("staged", hostPath).Msg("Module staged into target filesystem")
	return "/tmp/" + name, nil
}

// Detach removes staged modules. The JVM keeps loaded jars open, so removal
// does not affect a loaded agent.
func (v *vm) Detach() error {
	if v.detached {
		return errors.Newf(errors.KindDetachFailed, "process %d already detached", v.pid)
	}
	v.detached = true

	var errs []error
	for _, path := range v.staged {
		if err := os.Remove(path); err != nil && !goerrors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	v.staged = nil

	return errors.New(errors.KindDetachFailed, goerrors.Join(errs...))
}

func isSocket(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&fs.ModeSocket != 0
}

// checkOwner verifies path is owned by id's uid.
func checkOwner(path string, id privilege.Identity) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return err
	}
	if int(st.Uid) != id.UID {
		return fmt.Errorf("%s is owned by uid %d, target runs as uid %d", path, st.Uid, id.UID)
	}
	return nil
}
