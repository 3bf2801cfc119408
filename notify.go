package livemap

import "github.com/sirupsen/logrus"

// Notifier delivers a text message to a named recipient, usually a player.
type Notifier interface {
	Notify(recipient, msg string)
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct{}

func (LogNotifier) Notify(recipient, msg string) {
	logrus.WithFields(logrus.Fields{
		"component": "notify",
		"recipient": recipient,
	}).Info(msg)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(recipient, msg string)

func (f NotifierFunc) Notify(recipient, msg string) {
	f(recipient, msg)
}
