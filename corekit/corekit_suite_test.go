package corekit_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCoreKit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CoreKit Suite")
}
