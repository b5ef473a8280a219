package http

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

const (
	// MaxSegmentIDLength bounds client-assigned segment ids, in bytes.
	MaxSegmentIDLength = 256
	// MaxBodySize bounds request bodies, including write payloads.
	MaxBodySize = 1 << 20
)

// ValidateSegmentID rejects ids that cannot be used as registry keys.
func ValidateSegmentID(id string) error {
	if id == "" {
		return fmt.Errorf("segment id is required")
	}
	if len(id) > MaxSegmentIDLength {
		return fmt.Errorf("segment id length %d exceeds maximum %d", len(id), MaxSegmentIDLength)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("segment id is not valid UTF-8")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("segment id contains control character %U", r)
		}
	}
	return nil
}

// RequireSegmentID validates the :segment path parameter of a route.
func RequireSegmentID(c *gin.Context) {
	if err := ValidateSegmentID(c.Param("segment")); err != nil {
		badRequest(c, err)
		return
	}
	c.Next()
}
