// Package services holds cross-cutting helpers shared by the external
// service clients: the error taxonomy used for status classification and
// context annotations used for log correlation.
package services
