package upload

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"mjpegplayback/apperror"
	"mjpegplayback/config"
	"mjpegplayback/logger"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type Uploader struct {
	mu          sync.Mutex
	isUploading bool
	uploadName  string

	s3config      config.S3
	exportsFolder string
	logFolder     string
	logger        *logger.Logger
	uploader      *s3manager.Uploader
}

func NewUploader(s3config config.S3, exportsFolder, logFolder string, logger *logger.Logger) (*Uploader, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(s3config.Region),
		Credentials:      credentials.NewStaticCredentials(s3config.AccessKey, s3config.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}

	if s3config.EndpointUrl != "" {
		awsConfig.Endpoint = aws.String(s3config.EndpointUrl)
	}

	sess, err := session.NewSession(awsConfig)

	if err != nil {
		return nil, err
	}

	return &Uploader{
		s3config:      s3config,
		exportsFolder: exportsFolder,
		logFolder:     logFolder,
		logger:        logger,
		uploader:      s3manager.NewUploader(sess),
	}, nil
}

func (u *Uploader) UploadStats() (bool, string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.isUploading, u.uploadName
}

func (u *Uploader) begin(name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.isUploading {
		u.logger.LogError(errors.New("upload in progress"), "Cannot upload while another upload is in progress", "file_name", name)
		return apperror.ServiceUnavailable.SetMessage("Cannot upload while another upload is in progress")
	}

	u.isUploading = true
	u.uploadName = name
	return nil
}

func (u *Uploader) end() {
	u.mu.Lock()
	u.isUploading = false
	u.uploadName = ""
	u.mu.Unlock()
}

// UploadLogs pushes every log file except currentLog and removes the
// uploaded copies.
func (u *Uploader) UploadLogs(currentLog string) {
	u.logger.LogInfo("Uploading logs to S3", "bucket", u.s3config.Bucket, "folder", u.logFolder)

	dir, err := os.Open(u.logFolder)

	if err != nil {
		u.logger.LogError(err, "Error opening log folder", "folder", u.logFolder)
		return
	}

	defer func() { _ = dir.Close() }()

	filenames, err := dir.Readdirnames(0)

	if err != nil {
		u.logger.LogError(err, "Error reading log folder", "folder", u.logFolder)
		return
	}

	deviceHostName, err := os.Hostname()

	if err != nil {
		u.logger.LogError(err, "Error getting device hostname", "function", "UploadLogs")
		return
	}

	sort.Strings(filenames)

	for _, filename := range filenames {
		if filename == filepath.Base(currentLog) {
			continue
		}

		localFilename := filepath.Join(u.logFolder, filename)
		f, err := os.ReadFile(localFilename)

		if err != nil {
			u.logger.LogError(err, "Error reading log file", "filename", localFilename)
			continue
		}

		_, err = u.uploader.Upload(&s3manager.UploadInput{
			Bucket:      aws.String(u.s3config.Bucket),
			Key:         aws.String(fmt.Sprintf("%s/logs/%s", deviceHostName, filename)),
			Body:        aws.ReadSeekCloser(bytes.NewReader(f)),
			ContentType: aws.String("text/plain"),
		})

		if err != nil {
			u.logger.LogError(err, "Error uploading log file", "filename", filename)
			continue
		}

		if err := os.Remove(localFilename); err != nil {
			u.logger.LogError(err, "Error removing log file", "filename", filename)
		}
	}
}

// UploadExport sends one exported clip to S3 and deletes the local copy.
func (u *Uploader) UploadExport(filename string) error {
	filename = filepath.Base(filename)

	if filepath.Ext(filename) != ".avi" {
		return apperror.InvalidRequest.SetMessage("Only exported .avi clips can be uploaded")
	}

	if err := u.begin(filename); err != nil {
		return err
	}
	defer u.end()

	f := filepath.Join(u.exportsFolder, filename)
	contents, err := os.ReadFile(f)

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			u.logger.LogError(err, "Provided file does not exist in specified folder", "folder_name", u.exportsFolder, "file_name", filename)
			return apperror.NotFound
		}
		u.logger.LogError(err, "Error reading file", "folder_name", u.exportsFolder, "file_name", filename)
		return apperror.ServerError
	}

	deviceHostName, err := os.Hostname()

	if err != nil {
		u.logger.LogError(err, "Error fetching device hostname", "action", "upload", "file_name", filename)
		return apperror.ServerError
	}

	_, err = u.uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(u.s3config.Bucket),
		Key:         aws.String(fmt.Sprintf("%s/exports/%s", deviceHostName, filename)),
		ACL:         aws.String("private"),
		Body:        bytes.NewReader(contents),
		ContentType: aws.String("video/x-msvideo"),
	})

	if err != nil {
		u.logger.LogError(err, "Error uploading file to S3", "folder_name", u.exportsFolder, "file_name", filename)
		return apperror.ServerError
	}

	u.logger.LogInfo("Successful upload to S3", "folder_name", u.exportsFolder, "file_name", filename)

	if err = os.Remove(f); err != nil {
		u.logger.LogError(err, "Error deleting file", "folder_name", u.exportsFolder, "file_name", filename)
		return apperror.ServerError
	}

	u.logger.LogInfo("Successful deletion of file", "folder_name", u.exportsFolder, "file_name", filename)

	return nil
}
