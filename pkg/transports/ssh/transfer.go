package ssh

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
)

// UploadDirectory copies localDir recursively to remoteDir over SFTP,
// creating remote directories as needed. File modes are preserved.
func (c *Client) UploadDirectory(ctx context.Context, localDir, remoteDir string) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("open sftp session: %w", err), Temporary: true}
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(remoteDir); err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("create %s: %w", remoteDir, err)}
	}

	count := 0
	err = filepath.WalkDir(localDir, func(local string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, local)
		if err != nil {
			return err
		}
		remote := path.Join(remoteDir, filepath.ToSlash(rel))
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return sftpClient.MkdirAll(remote)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := uploadFile(sftpClient, local, remote); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}

	log.Debug().
		Str("local", localDir).
		Str("remote", remoteDir).
		Int("files", count).
		Msg("directory uploaded")
	return nil
}

func uploadFile(client *sftp.Client, local, remote string) error {
	src, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", local, err)
	}

	dst, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("create %s: %w", remote, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy to %s: %w", remote, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", remote, err)
	}
	return client.Chmod(remote, info.Mode().Perm())
}
