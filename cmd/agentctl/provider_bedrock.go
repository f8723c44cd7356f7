//go:build bedrock

package main

import (
	_ "github.com/ayushchhipa1509/OCI-COPILOT/ai/providers/bedrock"
)

// init appends bedrock to the default provider chain for binaries built with
// -tags bedrock, which is the only configuration that pulls in the AWS SDK.
func init() {
	providerChain = append(providerChain, "bedrock")
}
