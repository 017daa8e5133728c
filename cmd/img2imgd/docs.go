package main

// General API documentation for swaggo. The generated OpenAPI document lives in
// internal/httpapi/swagdocs and is served when built with -tags swagger.
//
// @title           img2imgd API
// @version         1.0
// @description     Single-flight image-to-image diffusion daemon: trigger runs, tune parameters, fetch the latest output.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
