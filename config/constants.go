package config

import "time"

// Pipeline Constants
const (
	// CollectorTimeout bounds each signal collector independently
	CollectorTimeout = 10 * time.Second

	// MaxEvidence caps the evidence and flag lists on a result
	MaxEvidence = 10

	// MaxSourcesChecked caps the sourcesChecked list on a result
	MaxSourcesChecked = 10
)

// Input Validation Constants
const (
	// MinTextLength is the shortest text accepted for verification
	MinTextLength = 10

	// MaxTextLength is the longest text accepted for verification
	MaxTextLength = 10000

	// MaxExtractedLength truncates page text materialized from a URL
	MaxExtractedLength = 5000

	// MaxImageBytes is the largest accepted image upload (10 MB)
	MaxImageBytes = 10 * 1024 * 1024

	// MaxImagePixels bounds the dimensions an image may declare before it is decoded
	MaxImagePixels = 40_000_000
)

// Dedup Cache Constants
const (
	// DedupCapacity is the number of URLs the in-memory dedup cache holds before FIFO eviction
	DedupCapacity = 1000

	// DedupTTL is how long a completed URL stays in the Redis dedup cache
	DedupTTL = 24 * time.Hour

	// DedupKeyPrefix namespaces dedup keys in Redis
	DedupKeyPrefix = "honestlens:dedup:"
)

// Extraction Constants
const (
	// ExtractionTimeout bounds a single page fetch
	ExtractionTimeout = 10 * time.Second

	// ExtractionUserAgent identifies the fetcher to remote sites
	ExtractionUserAgent = "HonestLens-Bot/1.0"
)

// Kafka Constants
const (
	// ResultsTopic receives one message per completed verification
	ResultsTopic = "verification-results"

	// RequestsTopic carries submissions from upstream producers
	RequestsTopic = "verification-requests"

	// ConsumerGroupID is the consumer group for RequestsTopic
	ConsumerGroupID = "honestlens-verifier"
)

// Directory Constants
const (
	// UploadDir is where uploaded images are stored when S3 is not configured
	UploadDir = "uploads/verification"
)
