package model

import "time"

// JobStatus is the publication state of a job listing.
type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
)

// Job is a job board listing.
type Job struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Title            string    `json:"title"`
	CompanyName      string    `json:"companyName"`
	Category         string    `json:"category"`
	Industry         string    `json:"industry,omitempty"`
	EmploymentType   string    `json:"employmentType,omitempty"`
	Salary           string    `json:"salary,omitempty"`
	Skills           string    `json:"skills,omitempty"`
	ShortDescription string    `json:"shortDescription,omitempty"`
	Description      string    `json:"jobDescription,omitempty"`
	File             string    `json:"file,omitempty"`
	LinkForApply     string    `json:"linkForApply,omitempty"`
	Email            string    `json:"email,omitempty"`
	Status           JobStatus `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Joined on read.
	User  *Profile  `json:"user,omitempty"`
	Likes []JobLike `json:"jobLikes"`
}

// JobLike marks a user's like of a job.
type JobLike struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"created_at"`
}

// JobQuery narrows the job board. Empty fields match everything.
type JobQuery struct {
	Category    string `json:"category,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	Limit       int    `json:"-"`
	Offset      int    `json:"-"`
}

// Matches reports whether j belongs to the query's result set.
func (q JobQuery) Matches(j *Job) bool {
	if q.Category != "" && j.Category != q.Category {
		return false
	}
	if q.CompanyName != "" && j.CompanyName != q.CompanyName {
		return false
	}
	return true
}

// SaveJobRequest creates a job, or updates the caller's job when ID is set.
type SaveJobRequest struct {
	ID               string    `json:"id,omitempty"`
	Title            string    `json:"title"`
	CompanyName      string    `json:"companyName"`
	Category         string    `json:"category"`
	Industry         string    `json:"industry,omitempty"`
	EmploymentType   string    `json:"employmentType,omitempty"`
	Salary           string    `json:"salary,omitempty"`
	Skills           string    `json:"skills,omitempty"`
	ShortDescription string    `json:"shortDescription,omitempty"`
	Description      string    `json:"jobDescription,omitempty"`
	LinkForApply     string    `json:"linkForApply,omitempty"`
	Email            string    `json:"email,omitempty"`
	Status           JobStatus `json:"status,omitempty"`
	File             *Upload   `json:"file,omitempty"`
}

// ListJobsResponse is a page of the job board.
type ListJobsResponse struct {
	Jobs    []Job `json:"jobs"`
	HasMore bool  `json:"has_more"`
}
