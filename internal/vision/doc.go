// Package vision captures camera frames and turns them into short spoken
// navigation guidance through a multimodal language model.
package vision
