package lifecycle

// defaultDockerfile is written to <base>/config/Dockerfile when the operator
// has not supplied one. Proxy and registry settings arrive as build args so
// the image builds behind corporate networks.
const defaultDockerfile = `# syntax=docker/dockerfile:1
FROM ubuntu:24.04

ARG HTTP_PROXY
ARG HTTPS_PROXY
ARG NO_PROXY
ARG NPM_REGISTRY=https://registry.npmjs.org
ARG PIP_INDEX_URL=https://pypi.org/simple

ENV DEBIAN_FRONTEND=noninteractive \
    LANG=C.UTF-8

RUN apt-get update && apt-get install -y --no-install-recommends \
        ca-certificates curl git openssh-client sudo \
        python3 python3-pip python3-venv nodejs npm \
    && rm -rf /var/lib/apt/lists/*

RUN npm config set registry "${NPM_REGISTRY}" --global \
    && pip3 config set global.index-url "${PIP_INDEX_URL}" || true

RUN userdel -r ubuntu 2>/dev/null || true \
    && useradd -m -s /bin/bash -u 1000 dev \
    && echo "dev ALL=(ALL) NOPASSWD:ALL" > /etc/sudoers.d/dev

USER dev
WORKDIR /workspace

EXPOSE 3000 8888 8443 5678

CMD ["/bin/bash", "-l"]
`
