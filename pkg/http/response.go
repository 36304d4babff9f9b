// Copyright 2025 Arcentra Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type ResponseCode struct {
	Code int
	Msg  string
}

var (
	Success                       = ResponseCode{Code: fiber.StatusOK, Msg: "success"}
	BadRequest                    = ResponseCode{Code: fiber.StatusBadRequest, Msg: "bad request"}
	RequestParameterParsingFailed = ResponseCode{Code: fiber.StatusBadRequest, Msg: "request parameter parsing failed"}
	Unauthorized                  = ResponseCode{Code: fiber.StatusUnauthorized, Msg: "unauthorized"}
	NotFound                      = ResponseCode{Code: fiber.StatusNotFound, Msg: "not found"}
	Failed                        = ResponseCode{Code: fiber.StatusInternalServerError, Msg: "operation failed"}
)

// Response is the envelope of every api response except the webhook.
type Response struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Detail    any    `json:"detail,omitempty"`
	Path      string `json:"path,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WithRepJSON writes a success envelope around detail.
func WithRepJSON(c *fiber.Ctx, detail any) error {
	return c.Status(Success.Code).JSON(Response{
		Code:      Success.Code,
		Msg:       Success.Msg,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	})
}

// WithRepErrMsg writes an error envelope; code is also used as the http status.
func WithRepErrMsg(c *fiber.Ctx, code int, msg, path string) error {
	return c.Status(code).JSON(Response{
		Code:      code,
		Msg:       msg,
		Path:      path,
		Timestamp: time.Now().UnixMilli(),
	})
}
