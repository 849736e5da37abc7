package store

import (
	"errors"

	"github.com/terrylgarner/edx-platform/models"
	"github.com/terrylgarner/edx-platform/models/certificates"

	"gorm.io/gorm"
)

// ErrNotFound is returned for every lookup miss. Lookups keyed by an access
// key deliberately do not reveal whether the record or the key was wrong.
var ErrNotFound = errors.New("record not found")

// CertificateStore is the persistence surface the certificate handlers and
// the generation worker depend on.
type CertificateStore interface {
	CreateExample(cert *certificates.ExampleCertificate) error
	SaveExample(cert *certificates.ExampleCertificate) error
	ExampleByUUIDAndKey(uuid, accessKey string) (*certificates.ExampleCertificate, error)
	ExamplesForCourse(courseID string) ([]certificates.ExampleCertificate, error)

	SaveGenerated(cert *certificates.GeneratedCertificate) error
	GeneratedByKey(username, courseID, key string) (*certificates.GeneratedCertificate, error)
	GeneratedForStudent(userID uint, courseID string) (*certificates.GeneratedCertificate, error)
	GeneratedForUser(userID uint) ([]certificates.GeneratedCertificate, error)
	StatusForStudent(userID uint, courseID string) (string, error)

	UserByID(id uint) (*models.User, error)
	EnrollmentForStudent(userID uint, courseID string) (*models.Enrollment, error)
	OverviewByCourseID(courseID string) (*models.CourseOverview, error)
	LogCallback(entry *models.CallbackLog) error
}

type certificateStore struct {
	db *gorm.DB
}

// NewCertificateStore returns a CertificateStore backed by the given gorm
// connection.
func NewCertificateStore(db *gorm.DB) CertificateStore {
	return &certificateStore{db: db}
}

func (s *certificateStore) CreateExample(cert *certificates.ExampleCertificate) error {
	return s.db.Create(cert).Error
}

func (s *certificateStore) SaveExample(cert *certificates.ExampleCertificate) error {
	return s.db.Save(cert).Error
}

// ExampleByUUIDAndKey fetches an example certificate only when both the uuid
// and the access key match. A wrong key and a missing record are the same
// ErrNotFound.
func (s *certificateStore) ExampleByUUIDAndKey(uuid, accessKey string) (*certificates.ExampleCertificate, error) {
	var cert certificates.ExampleCertificate
	err := s.db.Where("uuid = ? AND access_key = ? AND is_deleted = false", uuid, accessKey).First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

func (s *certificateStore) ExamplesForCourse(courseID string) ([]certificates.ExampleCertificate, error) {
	var certs []certificates.ExampleCertificate
	err := s.db.Where("course_id = ? AND is_deleted = false", courseID).
		Order("created_at DESC").
		Find(&certs).Error
	return certs, err
}

func (s *certificateStore) SaveGenerated(cert *certificates.GeneratedCertificate) error {
	return s.db.Save(cert).Error
}

// GeneratedByKey resolves a student certificate by the (username, course run,
// queue key) triple presented by legacy queue callbacks.
func (s *certificateStore) GeneratedByKey(username, courseID, key string) (*certificates.GeneratedCertificate, error) {
	var user models.User
	err := s.db.Where("username = ? AND is_deleted = false", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var cert certificates.GeneratedCertificate
	err = s.db.Where("user_id = ? AND course_id = ? AND key = ? AND is_deleted = false",
		user.ID, courseID, key).First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

func (s *certificateStore) GeneratedForStudent(userID uint, courseID string) (*certificates.GeneratedCertificate, error) {
	var cert certificates.GeneratedCertificate
	err := s.db.Where("user_id = ? AND course_id = ? AND is_deleted = false", userID, courseID).
		Order("created_at DESC").
		First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

func (s *certificateStore) GeneratedForUser(userID uint) ([]certificates.GeneratedCertificate, error) {
	var certs []certificates.GeneratedCertificate
	err := s.db.Where("user_id = ? AND is_deleted = false", userID).
		Order("created_at DESC").
		Find(&certs).Error
	return certs, err
}

// StatusForStudent reports the student's certificate status for a course run,
// or StatusUnavailable when no record exists.
func (s *certificateStore) StatusForStudent(userID uint, courseID string) (string, error) {
	cert, err := s.GeneratedForStudent(userID, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return certificates.StatusUnavailable, nil
		}
		return "", err
	}
	return cert.Status, nil
}

func (s *certificateStore) UserByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.Where("id = ? AND is_deleted = false", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *certificateStore) EnrollmentForStudent(userID uint, courseID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := s.db.Where("user_id = ? AND course_id = ? AND is_deleted = false", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &enrollment, nil
}

func (s *certificateStore) OverviewByCourseID(courseID string) (*models.CourseOverview, error) {
	var overview models.CourseOverview
	err := s.db.Where("course_id = ? AND is_deleted = false", courseID).First(&overview).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &overview, nil
}

func (s *certificateStore) LogCallback(entry *models.CallbackLog) error {
	return s.db.Create(entry).Error
}
