package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig configures an SFTPStore.
type SFTPConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	KeyFile        string
	KnownHostsFile string // empty disables host key verification
	BasePath       string
	BaseURL        string // public URL that maps onto BasePath
	Timeout        time.Duration
}

// SFTPStore uploads objects to a remote host over SFTP. A connection is
// opened per upload; photo uploads are rare enough that pooling is not worth
// the stale-connection handling.
type SFTPStore struct {
	cfg SFTPConfig
}

// NewSFTPStore validates cfg and returns a store. It does not dial.
func NewSFTPStore(cfg SFTPConfig) (*SFTPStore, error) {
	if cfg.Host == "" {
		return nil, errors.New("sftp: host is required")
	}
	if cfg.User == "" {
		return nil, errors.New("sftp: user is required")
	}
	if cfg.Password == "" && cfg.KeyFile == "" {
		return nil, errors.New("sftp: no authentication method provided")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "."
	}
	return &SFTPStore{cfg: cfg}, nil
}

func (s *SFTPStore) clientConfig() (*ssh.ClientConfig, error) {
	config := &ssh.ClientConfig{
		User:    s.cfg.User,
		Timeout: s.cfg.Timeout,
	}

	if s.cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(s.cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: known hosts: %w", err)
		}
		config.HostKeyCallback = cb
	} else {
		log.Warn().Str("host", s.cfg.Host).Msg("sftp: host key verification disabled")
		config.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	switch {
	case s.cfg.KeyFile != "":
		key, err := os.ReadFile(s.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to parse private key: %w", err)
		}
		config.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	default:
		config.Auth = []ssh.AuthMethod{ssh.Password(s.cfg.Password)}
	}
	return config, nil
}

type sftpConn struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (c *sftpConn) Close() {
	_ = c.sftp.Close()
	_ = c.ssh.Close()
}

// connect dials in a goroutine so ctx can abandon a slow handshake.
func (s *SFTPStore) connect(ctx context.Context) (*sftpConn, error) {
	config, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	type connResult struct {
		conn *sftpConn
		err  error
	}
	resultChan := make(chan connResult, 1)

	go func() {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
		sshConn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to connect: %w", err)}
			return
		}
		client, err := sftp.NewClient(sshConn)
		if err != nil {
			sshConn.Close()
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to create client: %w", err)}
			return
		}
		resultChan <- connResult{&sftpConn{ssh: sshConn, sftp: client}, nil}
	}()

	select {
	case <-ctx.Done():
		// Close whatever the dialer eventually produces.
		go func() {
			if res := <-resultChan; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.conn, res.err
	}
}

// Put implements PhotoStore.
func (s *SFTPStore) Put(ctx context.Context, key, _ string, r io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	dst := path.Join(s.cfg.BasePath, k)
	if err := conn.sftp.MkdirAll(path.Dir(dst)); err != nil {
		return "", fmt.Errorf("sftp: failed to create directory %s: %w", path.Dir(dst), err)
	}
	f, err := conn.sftp.Create(dst)
	if err != nil {
		return "", fmt.Errorf("sftp: failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("sftp: failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("sftp: failed to close file: %w", err)
	}
	return joinURL(s.cfg.BaseURL, k), nil
}

// Delete implements PhotoStore.
func (s *SFTPStore) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.sftp.Remove(path.Join(s.cfg.BasePath, k)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("sftp: failed to remove file: %w", err)
	}
	return nil
}
