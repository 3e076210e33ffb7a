// Package delivery sends the two mails of an inquiry, keeps failed sends in a
// durable queue and replays that queue until each record is sent or has
// exhausted its retries. Records that give up trigger one alert to the
// operator.
package delivery
