package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", Sum(""))
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", Sum("abc"))
	assert.Len(t, Sum("2024-01-01,ACME,,42.50"), Size)
}

func TestSumDeterministic(t *testing.T) {
	line := "2024-01-01;ACME;card;-12,30\n"
	assert.Equal(t, Sum(line), Sum(line))
	assert.Equal(t, Sum(line), Sum(string([]byte(line))))
}

func TestSumSensitiveToEveryByte(t *testing.T) {
	line := "2024-01-01,ACME,,42.50"

	assert.NotEqual(t, Sum(line), Sum(line+" "))
	assert.NotEqual(t, Sum(line), Sum("2024-01-01,ACME,,42.51"))
	assert.NotEqual(t, Sum(line+"\n"), Sum(line+"\r\n"))
}
