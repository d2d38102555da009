// Package model defines the provider-agnostic text generation abstraction used
// by model-backed research agents and synthesizers.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (Anthropic, OpenAI) implement the Model interface in sub packages
// so higher layers remain decoupled from vendor SDKs.
package model
