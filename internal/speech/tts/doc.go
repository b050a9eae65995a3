// Package tts provides speech renderers: online synthesis through the OpenAI
// speech endpoint played with beep, a local command fallback and a chain that
// tries renderers in order.
package tts
