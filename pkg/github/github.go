/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package github talks to the GitHub REST API to check trigger data
// against the hosted repository.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
)

const apiURL = "https://api.github.com"

// APIGetRequest performs an authenticated GET against the GitHub API
func APIGetRequest(ctx context.Context, url string) (*http.Response, error) {
	logrus.Debugf("GitHubAPI[GET]: %s", url)
	client := &http.Client{}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if os.Getenv("GITHUB_TOKEN") != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", os.Getenv("GITHUB_TOKEN")))
	} else {
		logrus.Warn("making unauthenticated request to github")
	}
	res, err := client.Do(req)
	if err != nil {
		return res, fmt.Errorf("executing http request to GitHub API: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf(
			"http error %d making request to GitHub API", res.StatusCode,
		)
	}
	return res, nil
}

// VerifyTag checks that a tag actually exists in the repository the
// trigger event claims it came from
func VerifyTag(ctx context.Context, owner, repo, tag string) (*TagRef, error) {
	res, err := APIGetRequest(ctx, fmt.Sprintf(
		"%s/repos/%s/%s/git/ref/tags/%s", apiURL, owner, repo, tag,
	))
	if err != nil {
		return nil, fmt.Errorf("querying tag %s: %w", tag, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading API response: %w", err)
	}

	ref := &TagRef{}
	if err := json.Unmarshal(data, ref); err != nil {
		return nil, fmt.Errorf("unmarshalling tag ref: %w", err)
	}
	if ref.Ref == "" {
		return nil, fmt.Errorf("tag %s not found in %s/%s", tag, owner, repo)
	}
	return ref, nil
}

// Download fetches a URL into a writer, authenticating when a token
// is set in the environment
func Download(ctx context.Context, url string, f io.Writer) error {
	client := &http.Client{}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating http request: %w", err)
	}

	if os.Getenv("GITHUB_TOKEN") != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", os.Getenv("GITHUB_TOKEN")))
	} else {
		logrus.Warn("making unauthenticated request to github")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("executing http request to GitHub API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http error when downloading: %s", resp.Status)
	}

	numBytes, err := io.Copy(f, resp.Body)
	if err != nil {
		return fmt.Errorf("writing http response to disk: %w", err)
	}
	logrus.Infof("%d MB downloaded from %s", (numBytes / 1024 / 1024), url)
	return nil
}
