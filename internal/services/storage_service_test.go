// internal/services/storage_service_test.go
package services

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/accredix/accredix-backend/internal/utils"
)

type StorageServiceTestSuite struct {
	suite.Suite
	storage *StorageService
}

func (s *StorageServiceTestSuite) SetupTest() {
	s.storage = NewLocalStorageService(testConfig())
}

type memoryFile struct {
	*bytes.Reader
}

func (memoryFile) Close() error { return nil }

func uploadFixture(name string, size int64) (multipart.File, *multipart.FileHeader) {
	content := bytes.Repeat([]byte("a"), int(size))
	header := &multipart.FileHeader{
		Filename: name,
		Size:     size,
		Header:   textproto.MIMEHeader{"Content-Type": []string{"application/pdf"}},
	}
	return memoryFile{bytes.NewReader(content)}, header
}

func (s *StorageServiceTestSuite) TestUploadWithoutS3FallsBackToLocal() {
	file, header := uploadFixture("certificate.pdf", 128)

	result, err := s.storage.UploadFile(file, header, DocumentUploadOptions())
	s.Require().NoError(err)
	s.Contains(result.URL, "/uploads/documents/")
	s.Contains(result.Key, "documents/")
	s.EqualValues(128, result.Size)
}

func (s *StorageServiceTestSuite) TestUploadRejectsDisallowedExtension() {
	file, header := uploadFixture("malware.exe", 128)

	_, err := s.storage.UploadFile(file, header, DocumentUploadOptions())
	s.True(utils.IsCode(err, utils.CodeValidation))
}

func (s *StorageServiceTestSuite) TestUploadRejectsOversizedFile() {
	options := DocumentUploadOptions()
	file, header := uploadFixture("huge.pdf", options.MaxSize+1)

	_, err := s.storage.UploadFile(file, header, options)
	s.True(utils.IsCode(err, utils.CodeValidation))
}

func TestStorageServiceSuite(t *testing.T) {
	suite.Run(t, new(StorageServiceTestSuite))
}
