// Package metrics provides Prometheus metrics for showinghive.
// Labels are bounded enums; never label by showing or property ID.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ShowingEventsTotal counts showing workflow events by type
	// (requested, approved, declined, rescheduled, reminder).
	ShowingEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_showing_events_total",
		Help: "Total number of showing workflow events, by event.",
	}, []string{"event"})

	// BookingRejectionsTotal counts refused booking attempts by reason
	// (blocked, conflict).
	BookingRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_booking_rejections_total",
		Help: "Total number of rejected showing requests, by reason.",
	}, []string{"reason"})

	// NotificationsTotal counts notification outcomes by channel and result
	// (sent, logged, failed, dropped).
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_notifications_total",
		Help: "Total number of notifications, by channel and result.",
	}, []string{"channel", "result"})

	// NotificationQueueDepth is the number of notifications waiting to be sent.
	NotificationQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hive_notification_queue_depth",
		Help: "Current number of queued notifications.",
	})

	// JobRunsTotal counts background job runs by job and result.
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_job_runs_total",
		Help: "Total number of background job runs, by job and result.",
	}, []string{"job", "result"})

	// ToursCreatedTotal counts created tours.
	ToursCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hive_tours_created_total",
		Help: "Total number of tours created.",
	})
)

// RecordShowingEvent increments the showing event counter.
func RecordShowingEvent(event string) {
	ShowingEventsTotal.WithLabelValues(event).Inc()
}

// RecordBookingRejection increments the booking rejection counter.
func RecordBookingRejection(reason string) {
	BookingRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordNotification increments the notification counter.
func RecordNotification(channel, result string) {
	NotificationsTotal.WithLabelValues(channel, result).Inc()
}

// RecordJobRun increments the job counter with ok or error.
func RecordJobRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobRunsTotal.WithLabelValues(job, result).Inc()
}
